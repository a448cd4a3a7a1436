package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKey(t *testing.T) {
	assert.Equal(t, "producer-1#42", Event{Source: "producer-1", Seq: 42}.Key())
	assert.NotEqual(t, Event{Source: "a", Seq: 1}.Key(), Event{Source: "a", Seq: 11}.Key())
}

func TestBatchJSONFieldNames(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := Batch{
		Source: "tail",
		SentAt: ts,
		Events: []Event{{Source: "tail", Seq: 1, TS: ts, Data: Line{Path: "/var/log/x", Text: "hello"}}},
	}
	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "tail", generic["source"])
	events := generic["events"].([]interface{})
	require.Len(t, events, 1)
	first := events[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["seq"])
	assert.Equal(t, "hello", first["data"].(map[string]interface{})["text"])
}
