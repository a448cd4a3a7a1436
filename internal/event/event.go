package event

import (
	"strconv"
	"time"
)

// Batch is what a consumer flushes downstream.
type Batch struct {
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
	Events []Event   `json:"events"`
}

// Event is one item moved through a pipeline channel. Seq is assigned by the
// producer and is unique per Source.
type Event struct {
	Source string      `json:"source"`
	Seq    uint64      `json:"seq"`
	TS     time.Time   `json:"ts"`
	Data   interface{} `json:"data"`
}

// Key identifies an event across producers.
func (e Event) Key() string {
	return e.Source + "#" + strconv.FormatUint(e.Seq, 10)
}

type Line struct {
	Path string `json:"path"`
	Text string `json:"text"`
}
