package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Name      string `yaml:"name"`
	Capacity  int    `yaml:"capacity"`
	Producers int    `yaml:"producers"`
	Consumers int    `yaml:"consumers"`
	Items     int    `yaml:"items"`

	WriteDelay time.Duration `yaml:"write_delay"`
	ReadDelay  time.Duration `yaml:"read_delay"`
	OpTimeout  time.Duration `yaml:"op_timeout"`

	BatchMaxEvents int           `yaml:"batch_max_events"`
	BatchMaxWait   time.Duration `yaml:"batch_max_wait"`

	MetricsBind string `yaml:"metrics_bind"`
	LogLevel    string `yaml:"log_level"`

	TailPath      string        `yaml:"tail_path"`
	TailPoll      time.Duration `yaml:"tail_poll"`
	TailFromStart bool          `yaml:"tail_from_start"`
	DropWhenFull  bool          `yaml:"drop_when_full"`

	SinkURL       string        `yaml:"sink_url"`
	SinkToken     string        `yaml:"sink_token"`
	SinkTimeout   time.Duration `yaml:"sink_timeout"`
	SinkRetryMax  int           `yaml:"sink_retry_max"`
	SinkRetryBase time.Duration `yaml:"sink_retry_base"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "events"
	}
	if c.Capacity == 0 {
		c.Capacity = 3
	}
	if c.Producers == 0 {
		c.Producers = 1
	}
	if c.Consumers == 0 {
		c.Consumers = 2
	}
	if c.Items == 0 {
		c.Items = 10
	}
	if c.BatchMaxEvents == 0 {
		c.BatchMaxEvents = 250
	}
	if c.BatchMaxWait == 0 {
		c.BatchMaxWait = time.Second
	}
	if c.MetricsBind == "" {
		c.MetricsBind = "127.0.0.1:9109"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TailPoll == 0 {
		c.TailPoll = time.Second
	}
	if c.SinkTimeout == 0 {
		c.SinkTimeout = 5 * time.Second
	}
	if c.SinkRetryMax == 0 {
		c.SinkRetryMax = 3
	}
	if c.SinkRetryBase == 0 {
		c.SinkRetryBase = 500 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c.Capacity < 0 {
		return errors.New("capacity must be positive")
	}
	if c.Producers < 0 || c.Consumers < 0 {
		return errors.New("producers and consumers must be positive")
	}
	if c.Items < 0 {
		return errors.New("items must not be negative")
	}
	if c.BatchMaxEvents < 0 {
		return errors.New("batch_max_events must be positive")
	}
	if c.SinkRetryMax < 0 {
		return errors.New("sink_retry_max must not be negative")
	}
	if c.WriteDelay < 0 || c.ReadDelay < 0 || c.OpTimeout < 0 || c.SinkTimeout < 0 || c.SinkRetryBase < 0 {
		return errors.New("delays and timeouts must not be negative")
	}
	return nil
}
