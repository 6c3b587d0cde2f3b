package broker

import (
	"time"

	"github.com/google/uuid"

	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/fanout"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// Publish fans a message out to every matching subscription under a
// topic (spec.md §4.G "publish", §4.H Fan-out Router).
func (b *Broker) Publish(topicName string, req SendRequest) (*model.Message, error) {
	if len(req.Body) > model.MaxMessageSizeBytes {
		return nil, brokererr.Named(brokererr.MessageTooLarge, topicName, "message body exceeds the size ceiling")
	}
	if err := b.checkRateLimit(topicName); err != nil {
		b.metrics.CountError("publish", string(brokererr.CodeOf(err)))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.store.GetTopic(topicName); err != nil {
		b.metrics.CountError("publish", string(brokererr.CodeOf(err)))
		return nil, err
	}
	subs, err := b.store.ListSubscriptions(topicName)
	if err != nil {
		return nil, err
	}

	msg := req.toMessage(uuid.NewString())
	start := b.now()

	backlogs := make(map[model.SubscriptionKey]*backlog.Backlog, len(subs))
	for _, sub := range subs {
		backlogs[sub.Key] = b.subs[sub.Key].backlog
	}
	results := fanout.Route(msg, subs, backlogs, start)

	matched := 0
	for _, r := range results {
		b.metrics.ObserveFilterEvalDuration(topicName, r.Subscription.Subscription, r.EvalDuration)
		if r.Matched {
			matched++
			b.refreshSubscriptionRuntime(r.Subscription)
		}
	}

	b.metrics.CountSend(ports.EntityTopic, topicName)
	b.metrics.ObserveSendDuration(ports.EntityTopic, topicName, b.now().Sub(start))
	b.recordAudit("topic_published", ports.EntityTopic, topicName, map[string]any{
		"message_id":            msg.ID,
		"matched_subscriptions": matched,
		"total_subscriptions":   len(subs),
	})

	published := *msg
	published.SequenceNumber = 0
	return &published, nil
}

// ReceiveSubscription delivers up to max messages from a subscription's
// backlog, symmetric with Receive for queues.
func (b *Broker) ReceiveSubscription(topicName, subName string, mode ReceiveMode, max int) ([]*model.Message, error) {
	if err := b.checkRateLimit(topicName + "/" + subName); err != nil {
		b.metrics.CountError("receive", string(brokererr.CodeOf(err)))
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.GetSubscription(topicName, subName)
	if err != nil {
		b.metrics.CountError("receive", string(brokererr.CodeOf(err)))
		return nil, err
	}
	key := sub.Key
	ss := b.subs[key]
	start := b.now()

	b.sweepExpired(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, start)

	msgs := sharedReceive(ss.backlog, ss.locks, ss.deadletter, sub.Properties.LockDuration, sub.Properties.MaxDeliveryCount, mode, max, start)
	b.refreshSubscriptionRuntime(key)

	b.metrics.CountReceive(ports.EntitySubscription, subName)
	b.metrics.ObserveReceiveDuration(ports.EntitySubscription, subName, b.now().Sub(start))
	if len(msgs) > 0 {
		b.recordAudit("message_received", ports.EntitySubscription, subName, map[string]any{"topic": topicName, "count": len(msgs), "mode": mode})
	}
	return msgs, nil
}

// CompleteSubscription acknowledges successful processing of a leased
// subscription message.
func (b *Broker) CompleteSubscription(topicName, subName, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.GetSubscription(topicName, subName)
	if err != nil {
		return err
	}
	ss := b.subs[sub.Key]

	msg, err := b.resolveLock(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("complete", string(brokererr.CodeOf(err)))
		b.refreshSubscriptionRuntime(sub.Key)
		return err
	}
	ss.locks.Release(token)
	b.refreshSubscriptionRuntime(sub.Key)
	b.metrics.CountComplete(ports.EntitySubscription, subName)
	b.recordAudit("message_completed", ports.EntitySubscription, subName, map[string]any{"message_id": msg.ID, "topic": topicName})
	return nil
}

// AbandonSubscription releases a subscription message's lease early.
func (b *Broker) AbandonSubscription(topicName, subName, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.GetSubscription(topicName, subName)
	if err != nil {
		return err
	}
	ss := b.subs[sub.Key]

	msg, err := b.resolveLock(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("abandon", string(brokererr.CodeOf(err)))
		b.refreshSubscriptionRuntime(sub.Key)
		return err
	}
	ss.locks.Release(token)
	b.routeAbandonOutcome(msg, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount)
	b.refreshSubscriptionRuntime(sub.Key)
	b.metrics.CountAbandon(ports.EntitySubscription, subName)
	b.recordAudit("message_abandoned", ports.EntitySubscription, subName, map[string]any{"message_id": msg.ID, "topic": topicName, "delivery_count": msg.DeliveryCount})
	return nil
}

// DeadLetterSubscription moves a leased subscription message directly
// to dead-letter.
func (b *Broker) DeadLetterSubscription(topicName, subName, token, reason, description string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.GetSubscription(topicName, subName)
	if err != nil {
		return err
	}
	ss := b.subs[sub.Key]

	msg, err := b.resolveLock(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("dead_letter", string(brokererr.CodeOf(err)))
		b.refreshSubscriptionRuntime(sub.Key)
		return err
	}
	ss.locks.Release(token)
	ss.deadletter.Admit(msg, reason, description)
	b.refreshSubscriptionRuntime(sub.Key)
	b.metrics.CountDeadLetter(ports.EntitySubscription, subName, reason)
	b.recordAudit("message_dead_lettered", ports.EntitySubscription, subName, map[string]any{"message_id": msg.ID, "topic": topicName, "reason": reason})
	return nil
}

// RenewSubscriptionLock extends a leased subscription message's
// deadline by one more lock_duration from now.
func (b *Broker) RenewSubscriptionLock(topicName, subName, token string) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.GetSubscription(topicName, subName)
	if err != nil {
		return time.Time{}, err
	}
	ss := b.subs[sub.Key]

	msg, err := b.resolveLock(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, token, b.now())
	if err != nil {
		b.metrics.CountError("renew_lock", string(brokererr.CodeOf(err)))
		return time.Time{}, err
	}
	deadline, _ := ss.locks.Renew(token, sub.Properties.LockDuration, b.now())
	msg.LockedUntil = &deadline
	b.recordAudit("message_lock_renewed", ports.EntitySubscription, subName, map[string]any{"message_id": msg.ID, "topic": topicName})
	return deadline, nil
}

func (b *Broker) refreshSubscriptionRuntime(key model.SubscriptionKey) {
	sub, err := b.store.GetSubscription(key.Topic, key.Subscription)
	if err != nil {
		return
	}
	ss, ok := b.subs[key]
	if !ok {
		return
	}
	now := b.now()
	sub.Runtime.ActiveMessageCount = ss.backlog.Len() - ss.backlog.ScheduledCount(now)
	sub.Runtime.ScheduledMessageCount = ss.backlog.ScheduledCount(now)
	sub.Runtime.LockedMessageCount = ss.locks.Len()
	sub.Runtime.DeadLetterMessageCount = ss.deadletter.Len()

	b.metrics.SetActiveGauge(ports.EntitySubscription, key.Subscription, sub.Runtime.ActiveMessageCount)
	b.metrics.SetScheduledGauge(ports.EntitySubscription, key.Subscription, sub.Runtime.ScheduledMessageCount)
	b.metrics.SetLockedGauge(ports.EntitySubscription, key.Subscription, sub.Runtime.LockedMessageCount)
	b.metrics.SetDeadLetterGauge(ports.EntitySubscription, key.Subscription, sub.Runtime.DeadLetterMessageCount)
}
