// Package audit records the append-only conversation log of an evaluation
// run: every dispatch, completion, fault, collaboration message and
// finalization.
package audit

import (
	"encoding/json"
	"sync"
	"time"
)

// Kind classifies an audit entry.
type Kind string

const (
	KindDispatch  Kind = "dispatch"
	KindComplete  Kind = "complete"
	KindFault     Kind = "fault"
	KindTimeout   Kind = "timeout"
	KindCancelled Kind = "cancelled"
	KindMessage   Kind = "message"
	KindInert     Kind = "inert"
	KindAdjust    Kind = "adjust"
	KindSkip      Kind = "skip"
	KindFinalize  Kind = "finalize"
)

// Entry is a single audit record.
type Entry struct {
	Seq    int       `json:"seq"`
	Time   time.Time `json:"time"`
	Kind   Kind      `json:"kind"`
	Worker string    `json:"worker,omitempty"`
	Detail string    `json:"detail"`
}

// Log is safe for concurrent use. Entries are never removed or rewritten.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New creates an empty log stamped with time.Now.
func New() *Log {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty log that stamps entries with now.
func NewWithClock(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append adds an entry and returns it.
func (l *Log) Append(kind Kind, worker, detail string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Seq:    len(l.entries) + 1,
		Time:   l.now(),
		Kind:   kind,
		Worker: worker,
		Detail: detail,
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a copy of all recorded entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many entries of kind were recorded.
func (l *Log) Count(kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// JSON serializes the entries to indented JSON bytes.
func (l *Log) JSON() ([]byte, error) {
	return json.MarshalIndent(l.Entries(), "", "  ")
}
