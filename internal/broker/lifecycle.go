package broker

import (
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/deadletter"
	"github.com/oladejiayo/localzure-sub001/internal/locktable"
	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// resolveLock looks up token, applying the lock-expiry semantics shared
// by complete/abandon/dead_letter/renew_lock (spec.md §4.G): an unknown
// token is MessageLockLost; an expired one is reclaimed via the abandon
// decision and reported as MessageLockLost to the caller who presented
// it; a live one is returned for the caller to act on.
func (b *Broker) resolveLock(lt *locktable.LockTable, bl *backlog.Backlog, dl *deadletter.Sink, maxDeliveryCount int, token string, now time.Time) (*model.Message, error) {
	msg, deadline, ok := lt.Lookup(token)
	if !ok {
		return nil, brokererr.New(brokererr.MessageLockLost, "lock token not recognized")
	}
	if !now.Before(deadline) {
		lt.Release(token)
		b.routeAbandonOutcome(msg, bl, dl, maxDeliveryCount)
		return nil, brokererr.New(brokererr.MessageLockLost, "lock lease expired")
	}
	return msg, nil
}

// routeAbandonOutcome applies the abandon decision (spec.md §4.G
// "abandon"): dead-letter once delivery count has reached the maximum,
// otherwise clear lock state and re-insert at the backlog's tail. Shared
// by Abandon, the lock-expiry paths in resolveLock, and the background
// sweep.
func (b *Broker) routeAbandonOutcome(msg *model.Message, bl *backlog.Backlog, dl *deadletter.Sink, maxDeliveryCount int) {
	if msg.DeliveryCount >= maxDeliveryCount {
		dl.Admit(msg, "MaxDeliveryCountExceeded", "")
		return
	}
	msg.IsLocked = false
	msg.LockToken = ""
	msg.LockedUntil = nil
	bl.AppendAtTail(msg)
}

// sweepExpired reclaims every lease past its deadline on one entity,
// applying the same abandon decision as an explicit caller would
// (spec.md §4.G "Lock expiry sweep"). It runs lazily at the start of
// every receive on that entity; the background task in maintenance.go
// invokes it opportunistically across all entities, but no correctness
// depends on that task ever running.
func (b *Broker) sweepExpired(lt *locktable.LockTable, bl *backlog.Backlog, dl *deadletter.Sink, maxDeliveryCount int, now time.Time) int {
	tokens := lt.Expired(now)
	for _, token := range tokens {
		msg, _, ok := lt.Lookup(token)
		if !ok {
			continue
		}
		lt.Release(token)
		b.routeAbandonOutcome(msg, bl, dl, maxDeliveryCount)
	}
	return len(tokens)
}
