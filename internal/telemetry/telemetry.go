// Package telemetry keeps a bounded in-memory log of coordinated actions:
// what ran, how long it took, and how it ended. The stats panel shows the
// newest entries, and it is the first place to look when a view disagrees
// with the engine.
package telemetry

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 200

// Record describes one completed action.
type Record struct {
	ID       string        `json:"id"`
	Action   string        `json:"action"`
	Target   string        `json:"target,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`
	Err      string        `json:"err,omitempty"`
}

// Log is a fixed-capacity FIFO of records. Appending beyond capacity evicts
// the oldest record.
type Log struct {
	mu    sync.Mutex
	buf   []Record
	start int
	n     int
}

// NewLog returns a log bounded to capacity. Non-positive capacities fall
// back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]Record, capacity)}
}

// Append stores the record, stamping a ULID when the caller left ID empty.
func (l *Log) Append(r Record) {
	if r.ID == "" {
		r.ID = ulid.Make().String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = r
		l.n++
		return
	}
	l.buf[l.start] = r
	l.start = (l.start + 1) % len(l.buf)
}

// Records returns a copy of the log, oldest first.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, l.n)
	for i := range out {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Last returns the most recent record, if any.
func (l *Log) Last() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n == 0 {
		return Record{}, false
	}
	return l.buf[(l.start+l.n-1)%len(l.buf)], true
}

// Len reports the number of stored records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Cap reports the capacity bound.
func (l *Log) Cap() int {
	return len(l.buf)
}
