package broker

import (
	"context"
	"testing"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/brokerconfig"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/testutil"
)

func newTestBroker(t *testing.T) (*Broker, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := brokerconfig.NewDefaultConfig()
	b := New(cfg, Deps{})
	b.clock = clock.Now
	return b, clock
}

// TestQueue_S1 exercises spec.md scenario S1: two messages sent to a
// queue are received in FIFO order, each with a distinct lock token.
func TestQueue_S1(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("first")}); err != nil {
		t.Fatalf("send first: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("second")}); err != nil {
		t.Fatalf("send second: %v", err)
	}

	msgs, err := b.Receive("orders", PeekLock, 2)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Body) != "first" || string(msgs[1].Body) != "second" {
		t.Fatalf("want FIFO order, got %q then %q", msgs[0].Body, msgs[1].Body)
	}
	if msgs[0].LockToken == "" || msgs[1].LockToken == "" || msgs[0].LockToken == msgs[1].LockToken {
		t.Fatalf("want distinct non-empty lock tokens, got %q and %q", msgs[0].LockToken, msgs[1].LockToken)
	}
	if msgs[0].SequenceNumber != 1 || msgs[1].SequenceNumber != 2 {
		t.Fatalf("want sequence numbers 1 and 2, got %d and %d", msgs[0].SequenceNumber, msgs[1].SequenceNumber)
	}
}

// TestQueue_S2 exercises spec.md scenario S2: abandoning a message
// preserves its sequence number and increments delivery count on redelivery.
func TestQueue_S2(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("payload")}); err != nil {
		t.Fatalf("send: %v", err)
	}

	first, err := b.Receive("orders", PeekLock, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if first[0].DeliveryCount != 1 {
		t.Fatalf("want delivery count 1 after first receive, got %d", first[0].DeliveryCount)
	}
	originalSeq := first[0].SequenceNumber

	if err := b.Abandon("orders", first[0].LockToken); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	second, err := b.Receive("orders", PeekLock, 1)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("want message redelivered, got %d messages", len(second))
	}
	if second[0].SequenceNumber != originalSeq {
		t.Fatalf("sequence number changed across abandon: got %d, want %d", second[0].SequenceNumber, originalSeq)
	}
	if second[0].DeliveryCount != 2 {
		t.Fatalf("want delivery count 2 after redelivery, got %d", second[0].DeliveryCount)
	}
}

// TestTopic_S3 exercises spec.md scenario S3: a topic fans a message out
// to the subscription whose SQL rule matches a user property, skipping the
// subscription whose rule doesn't.
func TestTopic_S3(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateTopic("orders", model.TopicOptions{}); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	if _, err := b.CreateSubscription("orders", "urgent", model.SubscriptionOptions{}); err != nil {
		t.Fatalf("create urgent sub: %v", err)
	}
	if _, err := b.CreateSubscription("orders", "all", model.SubscriptionOptions{}); err != nil {
		t.Fatalf("create all sub: %v", err)
	}
	if err := b.DeleteRule("orders", "urgent", model.DefaultRuleName); err != nil {
		t.Fatalf("remove default rule: %v", err)
	}
	if _, err := b.AddRule("orders", "urgent", "priority-high", model.Filter{
		Kind: model.FilterSQL, SQLExpression: "priority = 'high'",
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	if _, err := b.Publish("orders", SendRequest{
		Body:           []byte("payload"),
		UserProperties: map[string]string{"priority": "high"},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := b.Publish("orders", SendRequest{
		Body:           []byte("payload"),
		UserProperties: map[string]string{"priority": "low"},
	}); err != nil {
		t.Fatalf("publish low: %v", err)
	}

	urgentMsgs, err := b.ReceiveSubscription("orders", "urgent", PeekLock, 10)
	if err != nil {
		t.Fatalf("receive urgent: %v", err)
	}
	if len(urgentMsgs) != 1 {
		t.Fatalf("want 1 message on urgent subscription, got %d", len(urgentMsgs))
	}

	allMsgs, err := b.ReceiveSubscription("orders", "all", PeekLock, 10)
	if err != nil {
		t.Fatalf("receive all: %v", err)
	}
	if len(allMsgs) != 2 {
		t.Fatalf("want 2 messages on all-default subscription, got %d", len(allMsgs))
	}
}

// TestQueue_S4 exercises spec.md scenario S4: with max_delivery_count=2,
// receiving and abandoning twice sends the message to dead-letter only
// after the second abandon.
func TestQueue_S4(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{MaxDeliveryCount: 2}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("payload")}); err != nil {
		t.Fatalf("send: %v", err)
	}

	first, err := b.Receive("orders", PeekLock, 1)
	if err != nil || len(first) != 1 {
		t.Fatalf("first receive: msgs=%v err=%v", first, err)
	}
	if err := b.Abandon("orders", first[0].LockToken); err != nil {
		t.Fatalf("first abandon: %v", err)
	}

	dl, _ := b.ListDeadLetter("orders")
	if len(dl) != 0 {
		t.Fatalf("want no dead-letter after first abandon, got %d", len(dl))
	}

	second, err := b.Receive("orders", PeekLock, 1)
	if err != nil || len(second) != 1 {
		t.Fatalf("second receive: msgs=%v err=%v", second, err)
	}
	if second[0].DeliveryCount != 2 {
		t.Fatalf("want delivery count 2, got %d", second[0].DeliveryCount)
	}
	if err := b.Abandon("orders", second[0].LockToken); err != nil {
		t.Fatalf("second abandon: %v", err)
	}

	dl, err = b.ListDeadLetter("orders")
	if err != nil {
		t.Fatalf("list dead letter: %v", err)
	}
	if len(dl) != 1 {
		t.Fatalf("want message dead-lettered after second abandon, got %d entries", len(dl))
	}
	if dl[0].DeadLetterReason != "MaxDeliveryCountExceeded" {
		t.Errorf("want reason MaxDeliveryCountExceeded, got %q", dl[0].DeadLetterReason)
	}

	active, err := b.Receive("orders", PeekLock, 1)
	if err != nil {
		t.Fatalf("receive after dead-letter: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("want no active messages left, got %d", len(active))
	}
}

// TestQueue_S5 exercises spec.md scenario S5: an invalid name is rejected
// and the 101st queue over a 100-queue quota is rejected.
func TestQueue_S5(t *testing.T) {
	b, _ := newTestBroker(t)
	_, err := b.CreateQueue("bad--name", model.QueueOptions{})
	if brokererr.CodeOf(err) != brokererr.InvalidName {
		t.Fatalf("want InvalidName, got %v", err)
	}

	cfg := brokerconfig.NewDefaultConfig()
	cfg.MaxQueues = 100
	quotaBroker := New(cfg, Deps{})
	for i := 0; i < 100; i++ {
		name := "queue-" + time.Now().Add(time.Duration(i)).Format("150405.000000000")
		if _, err := quotaBroker.CreateQueue(name, model.QueueOptions{}); err != nil {
			t.Fatalf("create queue %d: %v", i, err)
		}
	}
	_, err = quotaBroker.CreateQueue("one-too-many", model.QueueOptions{})
	if brokererr.CodeOf(err) != brokererr.QuotaExceeded {
		t.Fatalf("want QuotaExceeded at the 101st queue, got %v", err)
	}
}

// TestRenewLock extends a lease's deadline without affecting delivery count.
func TestRenewLock(t *testing.T) {
	b, clock := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{LockDuration: 30 * time.Second}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("x")}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := b.Receive("orders", PeekLock, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	token := msgs[0].LockToken

	clock.Advance(20 * time.Second)
	newDeadline, err := b.RenewLock("orders", token)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if !newDeadline.After(clock.Now()) {
		t.Fatalf("renewed deadline %v should be after current time %v", newDeadline, clock.Now())
	}
	if msgs[0].DeliveryCount != 1 {
		t.Fatalf("want delivery count 1 after renew, got %d", msgs[0].DeliveryCount)
	}
	if err := b.Complete("orders", token); err != nil {
		t.Fatalf("complete after renew: %v", err)
	}
}

// TestLockExpiry_SweepOnReceive verifies that an expired lock is reclaimed
// lazily the next time Receive runs on the same queue, without relying on
// the background maintenance loop.
func TestLockExpiry_SweepOnReceive(t *testing.T) {
	b, clock := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{LockDuration: 10 * time.Second}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("x")}); err != nil {
		t.Fatalf("send: %v", err)
	}
	first, err := b.Receive("orders", PeekLock, 1)
	if err != nil || len(first) != 1 {
		t.Fatalf("first receive: msgs=%v err=%v", first, err)
	}

	clock.Advance(11 * time.Second)

	second, err := b.Receive("orders", PeekLock, 1)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("want expired lease reclaimed and redelivered, got %d messages", len(second))
	}
	if second[0].DeliveryCount != 2 {
		t.Fatalf("want delivery count 2 after expiry-driven redelivery, got %d", second[0].DeliveryCount)
	}

	if err := b.Complete("orders", first[0].LockToken); brokererr.CodeOf(err) != brokererr.MessageLockLost {
		t.Fatalf("completing with the stale token should fail with MessageLockLost, got %v", err)
	}
}

func TestReceiveAndDelete_NoLockGranted(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("orders", SendRequest{Body: []byte("x")}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := b.Receive("orders", ReceiveAndDelete, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msgs[0].IsLocked || msgs[0].LockToken != "" {
		t.Fatalf("receive-and-delete should not grant a lock, got %+v", msgs[0])
	}
	remaining, err := b.Receive("orders", ReceiveAndDelete, 1)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("message should have been removed on receive-and-delete, got %d remaining", len(remaining))
	}
}

func TestMessageTooLarge(t *testing.T) {
	b, _ := newTestBroker(t)
	if _, err := b.CreateQueue("orders", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	_, err := b.Send("orders", SendRequest{Body: make([]byte, model.MaxMessageSizeBytes+1)})
	if brokererr.CodeOf(err) != brokererr.MessageTooLarge {
		t.Fatalf("want MessageTooLarge, got %v", err)
	}
}

// TestRateLimiter_DeniesSendReceivePublish exercises the wired RateLimiter
// port: a denying Check call must surface as QuotaExceeded from Send,
// Receive, and Publish, before any state change happens.
func TestRateLimiter_DeniesSendReceivePublish(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := brokerconfig.NewDefaultConfig()
	limiter := &testutil.RateLimiter{
		CheckFunc: func(_ context.Context, entity string) (bool, time.Duration, error) {
			return entity != "throttled", 0, nil
		},
	}
	b := New(cfg, Deps{RateLimiter: limiter})
	b.clock = clock.Now

	if _, err := b.CreateQueue("throttled", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.CreateTopic("throttled", model.TopicOptions{}); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	if _, err := b.Send("throttled", SendRequest{Body: []byte("x")}); brokererr.CodeOf(err) != brokererr.QuotaExceeded {
		t.Fatalf("want QuotaExceeded from Send, got %v", err)
	}
	if _, err := b.Receive("throttled", PeekLock, 1); brokererr.CodeOf(err) != brokererr.QuotaExceeded {
		t.Fatalf("want QuotaExceeded from Receive, got %v", err)
	}
	if _, err := b.Publish("throttled", SendRequest{Body: []byte("x")}); brokererr.CodeOf(err) != brokererr.QuotaExceeded {
		t.Fatalf("want QuotaExceeded from Publish, got %v", err)
	}

	if _, err := b.CreateQueue("allowed", model.QueueOptions{}); err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := b.Send("allowed", SendRequest{Body: []byte("x")}); err != nil {
		t.Fatalf("send on an allowed entity should succeed, got %v", err)
	}
}
