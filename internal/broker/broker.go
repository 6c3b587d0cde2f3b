package broker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oladejiayo/localzure-sub001/internal/audit"
	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/brokerconfig"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/deadletter"
	"github.com/oladejiayo/localzure-sub001/internal/locktable"
	"github.com/oladejiayo/localzure-sub001/internal/metrics"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/obslog"
	"github.com/oladejiayo/localzure-sub001/internal/persist"
	"github.com/oladejiayo/localzure-sub001/internal/ports"
	"github.com/oladejiayo/localzure-sub001/internal/ratelimit"
	"github.com/oladejiayo/localzure-sub001/internal/store"
)

// Deps bundles the narrow ports the broker consumes (spec.md §4.J). Any
// nil field is replaced by a no-op implementation, so a Broker can
// always be built with zero configuration for tests.
type Deps struct {
	Audit       ports.AuditSink
	Metrics     ports.Metrics
	Persistence ports.Persistence
	RateLimiter ports.RateLimiter
	Logger      ports.Logger
}

// queueState is the per-queue collection trio.
type queueState struct {
	backlog    *backlog.Backlog
	locks      *locktable.LockTable
	deadletter *deadletter.Sink
}

// subState is the per-subscription collection trio.
type subState struct {
	backlog    *backlog.Backlog
	locks      *locktable.LockTable
	deadletter *deadletter.Sink
}

// Broker is the Lifecycle Engine: the entity store plus every entity's
// backlog/lock-table/dead-letter collections, all mutated only while mu
// is held (spec.md §5).
type Broker struct {
	mu sync.Mutex

	cfg   *brokerconfig.Config
	store *store.Store
	clock func() time.Time

	queues map[string]*queueState
	subs   map[model.SubscriptionKey]*subState

	audit       ports.AuditSink
	metrics     ports.Metrics
	persistence ports.Persistence
	rateLimiter ports.RateLimiter
	logger      ports.Logger

	maintGroup *errgroup.Group
}

// New builds a Broker over cfg, wiring in deps (or no-op fallbacks).
func New(cfg *brokerconfig.Config, deps Deps) *Broker {
	if cfg == nil {
		cfg = brokerconfig.NewDefaultConfig()
	}
	b := &Broker{
		cfg:         cfg,
		store:       store.New(cfg),
		clock:       time.Now,
		queues:      make(map[string]*queueState),
		subs:        make(map[model.SubscriptionKey]*subState),
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		persistence: deps.Persistence,
		rateLimiter: deps.RateLimiter,
		logger:      deps.Logger,
	}
	if b.audit == nil {
		b.audit = audit.NoopSink{}
	}
	if b.metrics == nil {
		b.metrics = metrics.Noop{}
	}
	if b.persistence == nil {
		b.persistence = persist.Noop{}
	}
	if b.rateLimiter == nil {
		b.rateLimiter = ratelimit.Noop{}
	}
	if b.logger == nil {
		b.logger = obslog.New(io.Discard, nil, slog.LevelInfo)
	}
	b.restoreFromPersistence()
	return b
}

func (b *Broker) now() time.Time { return b.clock() }

// recordAudit both records the audit event and appends the same state
// change to the persistence port's mutation log (spec.md §4.J/§6:
// "append_log(mutation) for each state-changing call"). Every broker
// method that changes observable state calls this exactly once.
func (b *Broker) recordAudit(eventType string, kind ports.EntityKind, name string, fields map[string]any) {
	ts := b.now()
	b.audit.Record(ports.AuditRecord{
		EventType:  eventType,
		EntityType: string(kind),
		EntityName: name,
		Timestamp:  ts,
		Fields:     fields,
	})
	if err := b.persistence.AppendLog(ports.Mutation{Operation: eventType, Timestamp: ts, Payload: fields}); err != nil {
		b.logger.Error("failed to append mutation log", "error", err, "operation", eventType)
	}
}

// checkRateLimit consults the rate limiter before any lock is taken
// (spec.md §5: "rate-limit checks ... happen outside the section and
// before it"), translating a denial into the QuotaExceeded code callers
// are expected to observe (spec.md §4.J).
func (b *Broker) checkRateLimit(entity string) error {
	ok, _, err := b.rateLimiter.Check(context.Background(), entity)
	if err != nil {
		return brokererr.Wrap(brokererr.Internal, "rate limiter check failed", err)
	}
	if !ok {
		return brokererr.Named(brokererr.QuotaExceeded, entity, "rate limit exceeded")
	}
	return nil
}

// --- Queue management ---

// CreateQueue validates, quota-checks, and registers a new queue.
func (b *Broker) CreateQueue(name string, opts model.QueueOptions) (*model.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.store.CreateQueue(name, opts, b.now())
	if err != nil {
		b.metrics.CountError("create_queue", string(brokererr.CodeOf(err)))
		return nil, err
	}
	b.queues[name] = &queueState{backlog: backlog.New(), locks: locktable.New(), deadletter: deadletter.New()}
	b.metrics.SetEntityCountGauge(ports.EntityQueue, len(b.queues))
	b.recordAudit("queue_created", ports.EntityQueue, name, nil)
	b.logger.Info("queue created", "entity_type", "queue", "entity_name", name)
	return q, nil
}

// GetQueue returns the named queue's description.
func (b *Broker) GetQueue(name string) (*model.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.GetQueue(name)
}

// ListQueues lists every queue, sorted by name.
func (b *Broker) ListQueues() []*model.Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ListQueues()
}

// DeleteQueue removes a queue and discards its backlog, lock table, and
// dead-letter sink atomically under the broker mutex.
func (b *Broker) DeleteQueue(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.DeleteQueue(name); err != nil {
		b.metrics.CountError("delete_queue", string(brokererr.CodeOf(err)))
		return err
	}
	delete(b.queues, name)
	b.metrics.SetEntityCountGauge(ports.EntityQueue, len(b.queues))
	b.recordAudit("queue_deleted", ports.EntityQueue, name, nil)
	return nil
}

// --- Topic management ---

// CreateTopic validates, quota-checks, and registers a new topic.
func (b *Broker) CreateTopic(name string, opts model.TopicOptions) (*model.Topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.store.CreateTopic(name, opts, b.now())
	if err != nil {
		b.metrics.CountError("create_topic", string(brokererr.CodeOf(err)))
		return nil, err
	}
	b.metrics.SetEntityCountGauge(ports.EntityTopic, len(b.store.ListTopics()))
	b.recordAudit("topic_created", ports.EntityTopic, name, nil)
	return t, nil
}

// GetTopic returns the named topic's description.
func (b *Broker) GetTopic(name string) (*model.Topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.GetTopic(name)
}

// ListTopics lists every topic, sorted by name.
func (b *Broker) ListTopics() []*model.Topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ListTopics()
}

// DeleteTopic removes a topic and cascades to every subscription
// registered under it, discarding their backlog/lock/dead-letter state
// (spec.md §3: "deleting a Topic cascades to its Subscriptions and
// their backlogs").
func (b *Broker) DeleteTopic(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed, err := b.store.DeleteTopic(name)
	if err != nil {
		b.metrics.CountError("delete_topic", string(brokererr.CodeOf(err)))
		return err
	}
	for _, key := range removed {
		delete(b.subs, key)
	}
	b.metrics.SetEntityCountGauge(ports.EntityTopic, len(b.store.ListTopics()))
	b.recordAudit("topic_deleted", ports.EntityTopic, name, map[string]any{"cascaded_subscriptions": len(removed)})
	return nil
}

// --- Subscription management ---

// CreateSubscription validates, requires the parent topic, quota-checks
// per topic, and registers a new subscription with its "$Default" rule.
func (b *Broker) CreateSubscription(topicName, subName string, opts model.SubscriptionOptions) (*model.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.store.CreateSubscription(topicName, subName, opts, b.now())
	if err != nil {
		b.metrics.CountError("create_subscription", string(brokererr.CodeOf(err)))
		return nil, err
	}
	key := model.SubscriptionKey{Topic: topicName, Subscription: subName}
	b.subs[key] = &subState{backlog: backlog.New(), locks: locktable.New(), deadletter: deadletter.New()}
	b.recordAudit("subscription_created", ports.EntitySubscription, subName, map[string]any{"topic": topicName})
	return sub, nil
}

// GetSubscription returns the named subscription's description.
func (b *Broker) GetSubscription(topicName, subName string) (*model.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.GetSubscription(topicName, subName)
}

// ListSubscriptions lists every subscription under a topic.
func (b *Broker) ListSubscriptions(topicName string) ([]*model.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ListSubscriptions(topicName)
}

// DeleteSubscription removes a subscription and discards its backlog,
// lock table, and dead-letter sink.
func (b *Broker) DeleteSubscription(topicName, subName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.DeleteSubscription(topicName, subName); err != nil {
		b.metrics.CountError("delete_subscription", string(brokererr.CodeOf(err)))
		return err
	}
	delete(b.subs, model.SubscriptionKey{Topic: topicName, Subscription: subName})
	b.recordAudit("subscription_deleted", ports.EntitySubscription, subName, map[string]any{"topic": topicName})
	return nil
}

// --- Rule management ---

// AddRule appends a named rule to a subscription.
func (b *Broker) AddRule(topicName, subName, ruleName string, filter model.Filter) (*model.Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rule, err := b.store.AddRule(topicName, subName, ruleName, filter, b.now())
	if err != nil {
		b.metrics.CountError("add_rule", string(brokererr.CodeOf(err)))
		return nil, err
	}
	b.recordAudit("rule_added", ports.EntitySubscription, subName, map[string]any{"topic": topicName, "rule": ruleName})
	return rule, nil
}

// UpdateRule replaces an existing rule's filter.
func (b *Broker) UpdateRule(topicName, subName, ruleName string, filter model.Filter) (*model.Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rule, err := b.store.UpdateRule(topicName, subName, ruleName, filter)
	if err != nil {
		b.metrics.CountError("update_rule", string(brokererr.CodeOf(err)))
		return nil, err
	}
	b.recordAudit("rule_updated", ports.EntitySubscription, subName, map[string]any{"topic": topicName, "rule": ruleName})
	return rule, nil
}

// DeleteRule removes a rule by name.
func (b *Broker) DeleteRule(topicName, subName, ruleName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.DeleteRule(topicName, subName, ruleName); err != nil {
		b.metrics.CountError("delete_rule", string(brokererr.CodeOf(err)))
		return err
	}
	b.recordAudit("rule_deleted", ports.EntitySubscription, subName, map[string]any{"topic": topicName, "rule": ruleName})
	return nil
}

// ListRules lists a subscription's rules in evaluation order.
func (b *Broker) ListRules(topicName, subName string) ([]*model.Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.ListRules(topicName, subName)
}

// ListDeadLetter returns a snapshot of a queue's dead-letter collection.
func (b *Broker) ListDeadLetter(queueName string) ([]*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	qs, ok := b.queues[queueName]
	if !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, queueName, "queue not found")
	}
	return qs.deadletter.List(), nil
}

// ListSubscriptionDeadLetter returns a snapshot of a subscription's
// dead-letter collection.
func (b *Broker) ListSubscriptionDeadLetter(topicName, subName string) ([]*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ss, ok := b.subs[model.SubscriptionKey{Topic: topicName, Subscription: subName}]
	if !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, subName, "subscription not found")
	}
	return ss.deadletter.List(), nil
}
