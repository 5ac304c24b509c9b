// Package collab implements the collaboration bus: the append-only,
// sequence-ordered message log through which a finished worker influences
// workers that have not yet frozen their results.
package collab

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jdgilhuly/go_pillar_eval/pkg/audit"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// KindSecurityFindings is emitted by the security worker when it finds
// secret-like patterns.
const KindSecurityFindings = "security_findings"

// Payload carries the structured findings of the sender.
type Payload struct {
	Kind         string `json:"kind"`
	FindingCount int    `json:"finding_count"`
	RiskLevel    string `json:"risk_level,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Message is one entry of the collaboration log. Ordering is defined by Seq,
// never by wall-clock time.
type Message struct {
	Seq         uint64        `json:"seq"`
	From        pillar.Pillar `json:"from"`
	To          pillar.Pillar `json:"to"`
	Payload     Payload       `json:"payload"`
	Inert       bool          `json:"inert"`
	InertReason string        `json:"inert_reason,omitempty"`
}

func (m Message) String() string {
	s := fmt.Sprintf("#%d %s -> %s %s(%d)", m.Seq, m.From, m.To, m.Payload.Kind, m.Payload.FindingCount)
	if m.Inert {
		s += " inert: " + m.InertReason
	}
	return s
}

// Bus is safe for concurrent use. It is passed by handle to the dispatcher;
// there is no package-level bus.
type Bus struct {
	mu         sync.Mutex
	seq        uint64
	log        []Message
	pending    map[pillar.Pillar][]Message
	registered map[pillar.Pillar]bool
	frozen     map[pillar.Pillar]bool
	audit      *audit.Log
}

// NewBus creates an empty bus. A nil audit log disables auditing.
func NewBus(log *audit.Log) *Bus {
	return &Bus{
		pending:    make(map[pillar.Pillar][]Message),
		registered: make(map[pillar.Pillar]bool),
		frozen:     make(map[pillar.Pillar]bool),
		audit:      log,
	}
}

// Register marks pillars as recipients that take part in this run.
func (b *Bus) Register(ps ...pillar.Pillar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range ps {
		b.registered[p] = true
	}
}

// Emit appends a message from one pillar to another and returns it with its
// assigned sequence number. Messages to a frozen or unregistered recipient
// are logged as inert and never delivered.
func (b *Bus) Emit(from, to pillar.Pillar, payload Payload) Message {
	b.mu.Lock()
	b.seq++
	msg := Message{Seq: b.seq, From: from, To: to, Payload: payload}
	switch {
	case !b.registered[to]:
		msg.Inert = true
		msg.InertReason = "recipient not part of this run"
	case b.frozen[to]:
		msg.Inert = true
		msg.InertReason = "recipient already frozen"
	default:
		b.pending[to] = append(b.pending[to], msg)
	}
	b.log = append(b.log, msg)
	b.mu.Unlock()

	if b.audit != nil {
		if msg.Inert {
			b.audit.Append(audit.KindInert, string(to), msg.String())
		} else {
			b.audit.Append(audit.KindMessage, string(from), msg.String())
		}
	}
	return msg
}

// Drain removes and returns the pending messages for a recipient in
// sequence order.
func (b *Bus) Drain(to pillar.Pillar) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.pending[to]
	delete(b.pending, to)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	return msgs
}

// Freeze marks a recipient as frozen. Later messages to it are inert.
// Messages still pending at freeze time are discarded from delivery but
// remain in the log.
func (b *Bus) Freeze(p pillar.Pillar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen[p] = true
	delete(b.pending, p)
}

// Seal drains the pending messages for p and freezes it under one lock.
// A message emitted after Seal is inert; none can fall between the drain
// and the freeze.
func (b *Bus) Seal(p pillar.Pillar) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.pending[p]
	delete(b.pending, p)
	b.frozen[p] = true
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	return msgs
}

// Frozen reports whether p has frozen its result.
func (b *Bus) Frozen(p pillar.Pillar) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen[p]
}

// Messages returns a copy of the full log in sequence order.
func (b *Bus) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.log))
	copy(out, b.log)
	return out
}
