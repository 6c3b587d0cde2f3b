// Package backlog implements the per-entity ordered message collection of
// spec.md §4.D: a FIFO log with a monotonic sequence counter, generalized
// from pubsub-gui's internal/pubsub/subscriber.MessageBuffer (a bounded,
// mutex-guarded FIFO slice used to display streamed messages) into an
// unbounded, sequence-numbered, scheduled-message-aware delivery backlog.
package backlog

import (
	"sync"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Backlog is a FIFO ordered collection of *model.Message for one entity
// (a queue or a subscription), plus the entity's monotonic sequence
// counter.
type Backlog struct {
	mu       sync.RWMutex
	messages []*model.Message
	seq      int64
}

// New creates an empty Backlog.
func New() *Backlog {
	return &Backlog{}
}

// Append assigns the next sequence number and enqueue time, then appends m
// to the tail. Invariant 1 (spec.md §3): sequence numbers are strictly
// increasing starting at 1.
func (b *Backlog) Append(m *model.Message, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	m.SequenceNumber = b.seq
	m.EnqueuedTime = now
	b.messages = append(b.messages, m)
}

// AppendAtTail re-inserts m at the tail without assigning a new sequence
// number, used by abandon; the message loses its original position
// (spec.md §5: "Abandon re-inserts at the tail").
func (b *Backlog) AppendAtTail(m *model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
}

// Head returns the first non-scheduled message without removing it
// (spec.md §4.D: "head() returns the first non-scheduled message").
func (b *Backlog) Head(now time.Time) (*model.Message, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.messages {
		if !m.IsScheduledFor(now) {
			return m, true
		}
	}
	return nil, false
}

// PopNext removes and returns up to n eligible messages (not scheduled in
// the future), in FIFO order, skipping scheduled ones in place.
func (b *Backlog) PopNext(n int, now time.Time) []*model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var taken []*model.Message
	var remaining []*model.Message
	for _, m := range b.messages {
		if len(taken) < n && !m.IsScheduledFor(now) {
			taken = append(taken, m)
			continue
		}
		remaining = append(remaining, m)
	}
	b.messages = remaining
	return taken
}

// Remove deletes m by identity (pointer equality). Receive-and-delete mode
// does not use it: it takes messages with PopNext.
func (b *Backlog) Remove(m *model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cand := range b.messages {
		if cand == m {
			b.messages = append(b.messages[:i], b.messages[i+1:]...)
			return
		}
	}
}

// Len returns the number of messages currently in the backlog, scheduled
// or not (spec.md §9: scheduled messages are held in the backlog, never
// moved to a separate collection).
func (b *Backlog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}

// ScheduledCount returns how many backlog messages are scheduled for a
// future enqueue time relative to now, for the scheduled-count gauge.
func (b *Backlog) ScheduledCount(now time.Time) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, m := range b.messages {
		if m.IsScheduledFor(now) {
			count++
		}
	}
	return count
}

// Snapshot returns a shallow copy of the current backlog slice in FIFO
// order, for persistence and introspection.
func (b *Backlog) Snapshot() []*model.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*model.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// CurrentSequence reports the last sequence number assigned.
func (b *Backlog) CurrentSequence() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// RestoreFrom seeds the backlog with previously persisted messages (spec.md
// §6), preserving their original sequence numbers and advancing the
// counter past the highest one found so newly sent messages keep
// numbering forward from there.
func (b *Backlog) RestoreFrom(msgs []*model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append([]*model.Message(nil), msgs...)
	for _, m := range msgs {
		if m.SequenceNumber > b.seq {
			b.seq = m.SequenceNumber
		}
	}
}
