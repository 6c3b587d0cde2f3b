package broker

import (
	"time"

	"github.com/google/uuid"

	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/deadletter"
	"github.com/oladejiayo/localzure-sub001/internal/locktable"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// Send appends a message to a queue's backlog (spec.md §4.G "send").
func (b *Broker) Send(queueName string, req SendRequest) (*model.Message, error) {
	if len(req.Body) > model.MaxMessageSizeBytes {
		return nil, brokererr.Named(brokererr.MessageTooLarge, queueName, "message body exceeds the size ceiling")
	}
	if err := b.checkRateLimit(queueName); err != nil {
		b.metrics.CountError("send", string(brokererr.CodeOf(err)))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		b.metrics.CountError("send", string(brokererr.CodeOf(err)))
		return nil, err
	}
	qs := b.queues[queueName]

	msg := req.toMessage(uuid.NewString())
	start := b.now()
	qs.backlog.Append(msg, start)
	b.refreshQueueRuntime(queueName, q)

	b.metrics.CountSend(ports.EntityQueue, queueName)
	b.metrics.ObserveSendDuration(ports.EntityQueue, queueName, b.now().Sub(start))
	b.metrics.ObserveMessageSize(ports.EntityQueue, queueName, len(msg.Body))
	b.recordAudit("message_sent", ports.EntityQueue, queueName, map[string]any{"message_id": msg.ID, "sequence_number": msg.SequenceNumber})
	return msg, nil
}

// Receive delivers up to max messages from a queue, in either PeekLock
// or ReceiveAndDelete mode (spec.md §4.G "receive").
func (b *Broker) Receive(queueName string, mode ReceiveMode, max int) ([]*model.Message, error) {
	if err := b.checkRateLimit(queueName); err != nil {
		b.metrics.CountError("receive", string(brokererr.CodeOf(err)))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		b.metrics.CountError("receive", string(brokererr.CodeOf(err)))
		return nil, err
	}
	qs := b.queues[queueName]
	start := b.now()

	b.sweepExpired(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, start)

	msgs := sharedReceive(qs.backlog, qs.locks, qs.deadletter, q.Properties.LockDuration, q.Properties.MaxDeliveryCount, mode, max, start)
	b.refreshQueueRuntime(queueName, q)

	b.metrics.CountReceive(ports.EntityQueue, queueName)
	b.metrics.ObserveReceiveDuration(ports.EntityQueue, queueName, b.now().Sub(start))
	if len(msgs) > 0 {
		b.recordAudit("message_received", ports.EntityQueue, queueName, map[string]any{"count": len(msgs), "mode": mode})
	}
	return msgs, nil
}

// Complete acknowledges successful processing of a leased queue message
// (spec.md §4.G "complete").
func (b *Broker) Complete(queueName, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		return err
	}
	qs := b.queues[queueName]

	msg, err := b.resolveLock(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("complete", string(brokererr.CodeOf(err)))
		b.refreshQueueRuntime(queueName, q)
		return err
	}
	qs.locks.Release(token)
	b.refreshQueueRuntime(queueName, q)
	b.metrics.CountComplete(ports.EntityQueue, queueName)
	b.recordAudit("message_completed", ports.EntityQueue, queueName, map[string]any{"message_id": msg.ID})
	return nil
}

// Abandon releases a lease early, returning the message to the backlog
// or routing it to dead-letter if its delivery count has reached the
// configured maximum (spec.md §4.G "abandon").
func (b *Broker) Abandon(queueName, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		return err
	}
	qs := b.queues[queueName]

	msg, err := b.resolveLock(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("abandon", string(brokererr.CodeOf(err)))
		b.refreshQueueRuntime(queueName, q)
		return err
	}
	qs.locks.Release(token)
	b.routeAbandonOutcome(msg, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount)
	b.refreshQueueRuntime(queueName, q)
	b.metrics.CountAbandon(ports.EntityQueue, queueName)
	b.recordAudit("message_abandoned", ports.EntityQueue, queueName, map[string]any{"message_id": msg.ID, "delivery_count": msg.DeliveryCount})
	return nil
}

// DeadLetter moves a leased message directly to the dead-letter sink
// with a caller-supplied reason/description (spec.md §4.G "dead_letter").
func (b *Broker) DeadLetter(queueName, token, reason, description string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		return err
	}
	qs := b.queues[queueName]

	msg, err := b.resolveLock(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("dead_letter", string(brokererr.CodeOf(err)))
		b.refreshQueueRuntime(queueName, q)
		return err
	}
	qs.locks.Release(token)
	qs.deadletter.Admit(msg, reason, description)
	b.refreshQueueRuntime(queueName, q)
	b.metrics.CountDeadLetter(ports.EntityQueue, queueName, reason)
	b.recordAudit("message_dead_lettered", ports.EntityQueue, queueName, map[string]any{"message_id": msg.ID, "reason": reason})
	return nil
}

// RenewLock extends a leased queue message's deadline by one more
// lock_duration from now (spec.md §4.G "renew_lock").
func (b *Broker) RenewLock(queueName, token string) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.GetQueue(queueName)
	if err != nil {
		return time.Time{}, err
	}
	qs := b.queues[queueName]

	msg, err := b.resolveLock(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("renew_lock", string(brokererr.CodeOf(err)))
		return time.Time{}, err
	}
	deadline, _ := qs.locks.Renew(token, q.Properties.LockDuration, b.now())
	msg.LockedUntil = &deadline
	b.recordAudit("message_lock_renewed", ports.EntityQueue, queueName, map[string]any{"message_id": msg.ID})
	return deadline, nil
}

func (b *Broker) refreshQueueRuntime(name string, q *model.Queue) {
	qs, ok := b.queues[name]
	if !ok {
		return
	}
	now := b.now()
	q.Runtime.ActiveMessageCount = qs.backlog.Len() - qs.backlog.ScheduledCount(now)
	q.Runtime.ScheduledMessageCount = qs.backlog.ScheduledCount(now)
	q.Runtime.LockedMessageCount = qs.locks.Len()
	q.Runtime.DeadLetterMessageCount = qs.deadletter.Len()

	b.metrics.SetActiveGauge(ports.EntityQueue, name, q.Runtime.ActiveMessageCount)
	b.metrics.SetScheduledGauge(ports.EntityQueue, name, q.Runtime.ScheduledMessageCount)
	b.metrics.SetLockedGauge(ports.EntityQueue, name, q.Runtime.LockedMessageCount)
	b.metrics.SetDeadLetterGauge(ports.EntityQueue, name, q.Runtime.DeadLetterMessageCount)
}

// sharedReceive implements the receive half of spec.md §4.G for both
// queues and subscriptions: pop up to max eligible messages, and in
// PeekLock mode increment each one's delivery count and grant a fresh
// lease. dl is accepted for signature symmetry with sweepExpired/
// resolveLock but unused here — per the §9 Open Question resolution,
// delivery-count-vs-maximum is checked on abandon/expiry, never at
// receive time.
func sharedReceive(bl *backlog.Backlog, lt *locktable.LockTable, dl *deadletter.Sink, lockDuration time.Duration, maxDeliveryCount int, mode ReceiveMode, max int, now time.Time) []*model.Message {
	popped := bl.PopNext(max, now)
	if mode == ReceiveAndDelete {
		return popped
	}

	out := make([]*model.Message, 0, len(popped))
	for _, msg := range popped {
		msg.DeliveryCount++
		token, deadline := lt.Grant(msg, lockDuration, now)
		msg.LockToken = token
		msg.LockedUntil = &deadline
		msg.IsLocked = true
		out = append(out, msg)
	}
	return out
}
