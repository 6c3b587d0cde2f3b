package broker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

const maintenanceInterval = 10 * time.Second

// StartMaintenance launches the background maintenance loop (spec.md
// §4.I): every 10 seconds, under the broker mutex, refresh every
// entity's gauges and opportunistically reclaim expired leases.
// Cancelling ctx stops the loop cleanly at its next wake; nothing in
// the broker depends on this loop ever running — the same reclamation
// happens lazily inside Receive/ReceiveSubscription. Goroutine/cancel/
// done-channel shape follows pubsub-gui's
// subscriber.MessageStreamer.Start/receiveMessages; the goroutine's
// lifecycle is tracked with an errgroup.Group so Close can wait for it
// to actually exit rather than just signalling cancellation.
func (b *Broker) StartMaintenance(ctx context.Context) (done <-chan struct{}) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.runMaintenance(gctx)
		return nil
	})

	b.mu.Lock()
	b.maintGroup = g
	b.mu.Unlock()

	doneChan := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(doneChan)
	}()
	return doneChan
}

// Close waits for a running maintenance loop to exit, if one was started,
// then takes a final persisted snapshot so a configured persistence port
// never loses the mutations appended since its last periodic snapshot. The
// caller is responsible for cancelling the context passed to
// StartMaintenance first; Close only waits, it does not cancel.
func (b *Broker) Close() error {
	b.mu.Lock()
	g := b.maintGroup
	b.mu.Unlock()
	if g != nil {
		if err := g.Wait(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	snap := b.buildSnapshot()
	b.mu.Unlock()
	return b.persistence.Snapshot(snap)
}

func (b *Broker) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.maintenancePass()
		}
	}
}

func (b *Broker) maintenancePass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	for name, qs := range b.queues {
		q, err := b.store.GetQueue(name)
		if err != nil {
			b.logger.Error("maintenance pass failed to load queue", "entity_name", name, "error", err)
			continue
		}
		b.sweepExpired(qs.locks, qs.backlog, qs.deadletter, q.Properties.MaxDeliveryCount, now)
		b.refreshQueueRuntime(name, q)
	}

	for key, ss := range b.subs {
		sub, err := b.store.GetSubscription(key.Topic, key.Subscription)
		if err != nil {
			b.logger.Error("maintenance pass failed to load subscription", "topic", key.Topic, "subscription", key.Subscription, "error", err)
			continue
		}
		b.sweepExpired(ss.locks, ss.backlog, ss.deadletter, sub.Properties.MaxDeliveryCount, now)
		b.refreshSubscriptionRuntime(key)
	}

	b.metrics.SetEntityCountGauge(ports.EntityQueue, len(b.queues))
	b.metrics.SetEntityCountGauge(ports.EntityTopic, len(b.store.ListTopics()))
	b.metrics.SetEntityCountGauge(ports.EntitySubscription, len(b.subs))

	// Periodic snapshot flush (spec.md §6): a configured persistence port
	// otherwise only ever accumulates a mutation log this broker never
	// replays, so restore() would have nothing to return at the next
	// startup. A Noop port makes this a no-op.
	if err := b.persistence.Snapshot(b.buildSnapshot()); err != nil {
		b.logger.Error("maintenance pass failed to persist snapshot", "error", err)
	}
}
