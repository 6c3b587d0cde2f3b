// Package locktable implements spec.md §4.E: per-entity tracking of leased
// messages, their lock tokens, and expiry deadlines. Lock tokens are UUIDv4
// values minted with github.com/google/uuid, promoted here from an
// indirect dependency of pubsub-gui's GCP client stack to a direct,
// actively-used one.
package locktable

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

type entry struct {
	message  *model.Message
	deadline time.Time
}

// LockTable maps lock tokens to (message, lease-deadline) pairs for one
// entity. Lookup by token is the only access path, per spec.md §4.E.
type LockTable struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty LockTable.
func New() *LockTable {
	return &LockTable{entries: make(map[string]*entry)}
}

// Grant mints a fresh lock token for m, records its lease deadline as
// now+lockDuration, and returns the token. The caller is responsible for
// setting m's LockToken/LockedUntil/IsLocked fields to match.
func (t *LockTable) Grant(m *model.Message, lockDuration time.Duration, now time.Time) (token string, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	token = uuid.NewString()
	deadline = now.Add(lockDuration)
	t.entries[token] = &entry{message: m, deadline: deadline}
	return token, deadline
}

// Lookup returns the message and deadline registered for token, if any.
func (t *LockTable) Lookup(token string) (*model.Message, time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[token]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.message, e.deadline, true
}

// Renew replaces the lease deadline for token with now+lockDuration,
// provided the entry still exists. Returns the new deadline and whether
// the token was found.
func (t *LockTable) Renew(token string, lockDuration time.Duration, now time.Time) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[token]
	if !ok {
		return time.Time{}, false
	}
	e.deadline = now.Add(lockDuration)
	return e.deadline, true
}

// Release removes token's entry unconditionally, used by complete, abandon,
// and dead-letter once they've finished acting on the message.
func (t *LockTable) Release(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, token)
}

// Expired returns the tokens whose deadline is at or before now, without
// removing them — the caller (internal/broker's sweep) decides the
// abandon-vs-dead-letter routing before calling Release.
func (t *LockTable) Expired(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var tokens []string
	for token, e := range t.entries {
		if !now.Before(e.deadline) {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Len reports the number of outstanding leases, for the locked-count gauge.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
