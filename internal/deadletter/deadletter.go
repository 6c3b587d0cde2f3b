// Package deadletter implements spec.md §4.F: a per-entity, append-only
// terminal bucket for messages that exceed delivery attempts or are
// explicitly dead-lettered by a consumer. Reading it back is never part of
// the receive path (spec.md §9): it is a distinct listing operation.
package deadletter

import (
	"sync"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Sink is the per-entity dead-letter collection.
type Sink struct {
	mu       sync.RWMutex
	messages []*model.Message
}

// New creates an empty Sink.
func New() *Sink {
	return &Sink{}
}

// Admit moves m into the sink, stamping the dead-letter fields and
// clearing lock state (spec.md §4.F).
func (s *Sink) Admit(m *model.Message, reason, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.IsDeadLettered = true
	m.IsLocked = false
	m.LockToken = ""
	m.LockedUntil = nil
	m.DeadLetterReason = reason
	m.DeadLetterDescription = description
	s.messages = append(s.messages, m)
}

// List returns a snapshot of the dead-letter collection in admission
// order.
func (s *Sink) List() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports the current dead-letter count, for the dead-letter gauge.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// RestoreFrom seeds the sink with previously persisted dead-lettered
// messages (spec.md §6).
func (s *Sink) RestoreFrom(msgs []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]*model.Message(nil), msgs...)
}
