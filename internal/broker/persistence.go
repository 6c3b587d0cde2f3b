package broker

import (
	"encoding/json"

	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/deadletter"
	"github.com/oladejiayo/localzure-sub001/internal/locktable"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// restoreFromPersistence loads the last snapshot from the persistence port
// and rehydrates the store plus every entity's backlog/dead-letter
// collections (spec.md §6: "restore() invoked at init returns entities and
// collections"). A Noop persistence port always returns (nil, nil), so this
// is a no-op for an in-memory broker.
func (b *Broker) restoreFromPersistence() {
	snap, err := b.persistence.Restore()
	if err != nil {
		b.logger.Error("failed to restore persisted state", "error", err)
		return
	}
	if snap == nil {
		return
	}
	if err := b.restoreFromSnapshot(snap); err != nil {
		b.logger.Error("failed to apply persisted snapshot", "error", err)
	}
}

// restoreFromSnapshot rebuilds b.store and b.queues/b.subs from a
// previously persisted snapshot. It runs once, from New, before the
// broker is handed to any caller, so it needs no locking of its own.
func (b *Broker) restoreFromSnapshot(snap *ports.Snapshot) error {
	for name, raw := range snap.Queues {
		q, err := decodeQueue(raw)
		if err != nil {
			return brokererr.Wrap(brokererr.Internal, "failed to decode persisted queue "+name, err)
		}
		b.store.RestoreQueue(q)

		qs := &queueState{backlog: backlog.New(), locks: locktable.New(), deadletter: deadletter.New()}
		if msgs, err := decodeMessages(snap.Messages["queue_"+name]); err == nil {
			qs.backlog.RestoreFrom(msgs)
		}
		if msgs, err := decodeMessages(snap.Messages["queue_"+name+"_dead_letter"]); err == nil {
			qs.deadletter.RestoreFrom(msgs)
		}
		b.queues[name] = qs
	}

	for name, raw := range snap.Topics {
		t, err := decodeTopic(raw)
		if err != nil {
			return brokererr.Wrap(brokererr.Internal, "failed to decode persisted topic "+name, err)
		}
		b.store.RestoreTopic(t)
	}

	for bucket, raw := range snap.Subscriptions {
		sub, err := decodeSubscription(raw)
		if err != nil {
			return brokererr.Wrap(brokererr.Internal, "failed to decode persisted subscription "+bucket, err)
		}
		b.store.RestoreSubscription(sub)

		ss := &subState{backlog: backlog.New(), locks: locktable.New(), deadletter: deadletter.New()}
		if msgs, err := decodeMessages(snap.Messages["subscription_"+bucket]); err == nil {
			ss.backlog.RestoreFrom(msgs)
		}
		if msgs, err := decodeMessages(snap.Messages["subscription_"+bucket+"_dead_letter"]); err == nil {
			ss.deadletter.RestoreFrom(msgs)
		}
		b.subs[sub.Key] = ss
	}

	return nil
}

// buildSnapshot serializes every entity plus its message collections into
// the layout spec.md §6 describes: entities split by kind under Queues/
// Topics/Subscriptions, messages keyed by bucket name (queue_<name>,
// subscription_<topic>_<name>, and their <bucket>_dead_letter counterparts)
// under Messages. Lock state is dropped before persisting — leases are
// volatile and re-granted after restart by returning their messages to the
// backlog.
func (b *Broker) buildSnapshot() ports.Snapshot {
	snap := ports.Snapshot{
		Queues:        make(map[string]any, len(b.queues)),
		Topics:        make(map[string]any),
		Subscriptions: make(map[string]any, len(b.subs)),
		Messages:      make(map[string]any, 2*(len(b.queues)+len(b.subs))),
	}

	for name, qs := range b.queues {
		q, err := b.store.GetQueue(name)
		if err != nil {
			continue
		}
		snap.Queues[name] = q
		snap.Messages["queue_"+name] = releasedMessages(qs.backlog.Snapshot())
		snap.Messages["queue_"+name+"_dead_letter"] = qs.deadletter.List()
	}

	for _, t := range b.store.ListTopics() {
		snap.Topics[t.Name] = t
	}

	for key, ss := range b.subs {
		sub, err := b.store.GetSubscription(key.Topic, key.Subscription)
		if err != nil {
			continue
		}
		bucket := key.Topic + "_" + key.Subscription
		snap.Subscriptions[bucket] = sub
		snap.Messages["subscription_"+bucket] = releasedMessages(ss.backlog.Snapshot())
		snap.Messages["subscription_"+bucket+"_dead_letter"] = ss.deadletter.List()
	}

	return snap
}

// releasedMessages clones msgs with any in-flight lock state cleared, so a
// restored backlog never carries a lease token issued before the restart.
func releasedMessages(msgs []*model.Message) []*model.Message {
	out := make([]*model.Message, len(msgs))
	for i, m := range msgs {
		clone := *m
		clone.IsLocked = false
		clone.LockToken = ""
		clone.LockedUntil = nil
		out[i] = &clone
	}
	return out
}

func decodeQueue(v any) (*model.Queue, error) {
	var q model.Queue
	if err := roundTrip(v, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func decodeTopic(v any) (*model.Topic, error) {
	var t model.Topic
	if err := roundTrip(v, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeSubscription(v any) (*model.Subscription, error) {
	var s model.Subscription
	if err := roundTrip(v, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeMessages(v any) ([]*model.Message, error) {
	if v == nil {
		return nil, nil
	}
	var msgs []*model.Message
	if err := roundTrip(v, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// roundTrip re-encodes v (the generic any a persistence port's Restore()
// hands back after its own JSON decode into map[string]any) and decodes it
// into out's concrete type.
func roundTrip(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
