// Package store is the entity store (spec.md §4.C): CRUD over queues,
// topics, subscriptions, and rules, with quota enforcement and cascade
// deletion. Method naming and the Get/List/Create/Delete split follow
// pubsub-gui's internal/pubsub/admin package (ListTopicsAdmin,
// GetTopicMetadataAdmin, CreateTopicAdmin, DeleteTopicAdmin); the quota
// checks, cascade-on-delete, and name-sorted listing are grounded on the
// original backend.py's create_queue/delete_topic/create_subscription.
//
// Store holds no lock of its own: spec.md §5 calls for a single
// broker-wide mutex, and internal/broker is the only caller, already
// serialized by it.
package store

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/oladejiayo/localzure-sub001/internal/brokerconfig"
	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/model"
	"github.com/oladejiayo/localzure-sub001/internal/validate"
)

// Store is the in-memory registry of queues, topics, and subscriptions.
type Store struct {
	queues        map[string]*model.Queue
	topics        map[string]*model.Topic
	subscriptions map[model.SubscriptionKey]*model.Subscription

	maxQueues                int
	maxTopics                int
	maxSubscriptionsPerTopic int

	nextSubSeq int64
}

// New builds an empty Store bounded by cfg's quotas.
func New(cfg *brokerconfig.Config) *Store {
	return &Store{
		queues:                   make(map[string]*model.Queue),
		topics:                   make(map[string]*model.Topic),
		subscriptions:            make(map[model.SubscriptionKey]*model.Subscription),
		maxQueues:                cfg.MaxQueues,
		maxTopics:                cfg.MaxTopics,
		maxSubscriptionsPerTopic: cfg.MaxSubscriptionsPerTopic,
	}
}

// ---- Queues ----

// CreateQueue validates name, enforces the queue-count quota, and
// registers a new Queue.
func (s *Store) CreateQueue(name string, opts model.QueueOptions, now time.Time) (*model.Queue, error) {
	if err := validate.Queue(name); err != nil {
		return nil, err
	}
	if _, exists := s.queues[name]; exists {
		return nil, brokererr.Named(brokererr.EntityAlreadyExists, name, "queue already exists")
	}
	if len(s.queues) >= s.maxQueues {
		return nil, brokererr.Named(brokererr.QuotaExceeded, name, "maximum queue count exceeded")
	}

	q := model.NewQueue(name, opts, now)
	s.queues[name] = q
	return q, nil
}

// GetQueue returns the named queue.
func (s *Store) GetQueue(name string) (*model.Queue, error) {
	q, ok := s.queues[name]
	if !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, name, "queue not found")
	}
	return q, nil
}

// ListQueues returns every queue, ordered by name for stable pagination.
func (s *Store) ListQueues() []*model.Queue {
	out := lo.Values(s.queues)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteQueue removes a queue. The caller (internal/broker) is
// responsible for discarding its backlog/lock-table/dead-letter state in
// the same critical section.
func (s *Store) DeleteQueue(name string) error {
	if _, ok := s.queues[name]; !ok {
		return brokererr.Named(brokererr.EntityNotFound, name, "queue not found")
	}
	delete(s.queues, name)
	return nil
}

// ---- Topics ----

// CreateTopic validates name, enforces the topic-count quota, and
// registers a new Topic.
func (s *Store) CreateTopic(name string, opts model.TopicOptions, now time.Time) (*model.Topic, error) {
	if err := validate.Topic(name); err != nil {
		return nil, err
	}
	if _, exists := s.topics[name]; exists {
		return nil, brokererr.Named(brokererr.EntityAlreadyExists, name, "topic already exists")
	}
	if len(s.topics) >= s.maxTopics {
		return nil, brokererr.Named(brokererr.QuotaExceeded, name, "maximum topic count exceeded")
	}

	t := model.NewTopic(name, opts, now)
	s.topics[name] = t
	return t, nil
}

// GetTopic returns the named topic.
func (s *Store) GetTopic(name string) (*model.Topic, error) {
	t, ok := s.topics[name]
	if !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, name, "topic not found")
	}
	return t, nil
}

// ListTopics returns every topic, ordered by name.
func (s *Store) ListTopics() []*model.Topic {
	out := lo.Values(s.topics)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteTopic removes a topic and every subscription registered under
// it, matching backend.py's delete_topic cascade. It returns the deleted
// subscription keys so the caller can also discard their backlog/lock
// state.
func (s *Store) DeleteTopic(name string) ([]model.SubscriptionKey, error) {
	if _, ok := s.topics[name]; !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, name, "topic not found")
	}

	removed := lo.Filter(lo.Keys(s.subscriptions), func(key model.SubscriptionKey, _ int) bool {
		return key.Topic == name
	})
	for _, key := range removed {
		delete(s.subscriptions, key)
	}
	delete(s.topics, name)
	return removed, nil
}

// ---- Subscriptions ----

// CreateSubscription validates name, requires the parent topic to
// exist, enforces the per-topic subscription quota, and registers a new
// Subscription seeded with its "$Default" rule.
func (s *Store) CreateSubscription(topicName, subName string, opts model.SubscriptionOptions, now time.Time) (*model.Subscription, error) {
	if err := validate.Subscription(subName); err != nil {
		return nil, err
	}
	if _, ok := s.topics[topicName]; !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, topicName, "topic not found")
	}

	key := model.SubscriptionKey{Topic: topicName, Subscription: subName}
	if _, exists := s.subscriptions[key]; exists {
		return nil, brokererr.Named(brokererr.EntityAlreadyExists, subName, "subscription already exists")
	}
	if s.subscriptionCount(topicName) >= s.maxSubscriptionsPerTopic {
		return nil, brokererr.Named(brokererr.QuotaExceeded, topicName, "maximum subscription count per topic exceeded")
	}

	sub := model.NewSubscription(key, opts, now)
	s.nextSubSeq++
	sub.CreationSeq = s.nextSubSeq
	s.subscriptions[key] = sub
	s.refreshTopicRuntime(topicName)
	return sub, nil
}

func (s *Store) subscriptionCount(topicName string) int {
	return len(lo.Filter(lo.Keys(s.subscriptions), func(key model.SubscriptionKey, _ int) bool {
		return key.Topic == topicName
	}))
}

func (s *Store) refreshTopicRuntime(topicName string) {
	t, ok := s.topics[topicName]
	if !ok {
		return
	}
	t.Runtime.SubscriptionCount = s.subscriptionCount(topicName)
}

// GetSubscription returns the named subscription.
func (s *Store) GetSubscription(topicName, subName string) (*model.Subscription, error) {
	sub, ok := s.subscriptions[model.SubscriptionKey{Topic: topicName, Subscription: subName}]
	if !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, subName, "subscription not found")
	}
	return sub, nil
}

// ListSubscriptions returns every subscription registered under
// topicName, in creation order (spec.md §4.H: the fan-out router needs a
// stable, creation-order snapshot of a topic's subscriptions, not an
// alphabetical one). topicName must already exist.
func (s *Store) ListSubscriptions(topicName string) ([]*model.Subscription, error) {
	if _, ok := s.topics[topicName]; !ok {
		return nil, brokererr.Named(brokererr.EntityNotFound, topicName, "topic not found")
	}
	matching := lo.PickBy(s.subscriptions, func(key model.SubscriptionKey, _ *model.Subscription) bool {
		return key.Topic == topicName
	})
	out := lo.Values(matching)
	sort.Slice(out, func(i, j int) bool { return out[i].CreationSeq < out[j].CreationSeq })
	return out, nil
}

// DeleteSubscription removes a subscription from its topic.
func (s *Store) DeleteSubscription(topicName, subName string) error {
	key := model.SubscriptionKey{Topic: topicName, Subscription: subName}
	if _, ok := s.subscriptions[key]; !ok {
		return brokererr.Named(brokererr.EntityNotFound, subName, "subscription not found")
	}
	delete(s.subscriptions, key)
	s.refreshTopicRuntime(topicName)
	return nil
}

// ---- Rules ----

// AddRule appends a new rule to a subscription, rejecting a duplicate
// name, matching backend.py's add_rule.
func (s *Store) AddRule(topicName, subName, ruleName string, filter model.Filter, now time.Time) (*model.Rule, error) {
	if err := validate.Rule(ruleName); err != nil {
		return nil, err
	}
	sub, err := s.GetSubscription(topicName, subName)
	if err != nil {
		return nil, err
	}
	for _, r := range sub.Rules {
		if r.Name == ruleName {
			return nil, brokererr.Named(brokererr.RuleAlreadyExists, ruleName, "rule already exists")
		}
	}
	rule := &model.Rule{Name: ruleName, Filter: filter, CreatedAt: now}
	sub.Rules = append(sub.Rules, rule)
	return rule, nil
}

// UpdateRule replaces an existing rule's filter in place.
func (s *Store) UpdateRule(topicName, subName, ruleName string, filter model.Filter) (*model.Rule, error) {
	sub, err := s.GetSubscription(topicName, subName)
	if err != nil {
		return nil, err
	}
	for _, r := range sub.Rules {
		if r.Name == ruleName {
			r.Filter = filter
			return r, nil
		}
	}
	return nil, brokererr.Named(brokererr.RuleNotFound, ruleName, "rule not found")
}

// DeleteRule removes a rule from a subscription by name.
func (s *Store) DeleteRule(topicName, subName, ruleName string) error {
	sub, err := s.GetSubscription(topicName, subName)
	if err != nil {
		return err
	}
	for i, r := range sub.Rules {
		if r.Name == ruleName {
			sub.Rules = append(sub.Rules[:i], sub.Rules[i+1:]...)
			return nil
		}
	}
	return brokererr.Named(brokererr.RuleNotFound, ruleName, "rule not found")
}

// ListRules returns a subscription's rules in evaluation order (insertion
// order — spec.md §4.B: "rules are evaluated in the order they were
// added").
func (s *Store) ListRules(topicName, subName string) ([]*model.Rule, error) {
	sub, err := s.GetSubscription(topicName, subName)
	if err != nil {
		return nil, err
	}
	return sub.Rules, nil
}

// ---- Restore (spec.md §6) ----

// RestoreQueue inserts a previously persisted queue directly, bypassing
// validation and quota checks, for use only when internal/broker rehydrates
// the store from a persistence port's Restore() at startup.
func (s *Store) RestoreQueue(q *model.Queue) {
	s.queues[q.Name] = q
}

// RestoreTopic inserts a previously persisted topic directly.
func (s *Store) RestoreTopic(t *model.Topic) {
	s.topics[t.Name] = t
}

// RestoreSubscription inserts a previously persisted subscription
// directly, advancing the creation-sequence counter past it so
// subscriptions created after restart still sort after every restored one.
func (s *Store) RestoreSubscription(sub *model.Subscription) {
	s.subscriptions[sub.Key] = sub
	if sub.CreationSeq > s.nextSubSeq {
		s.nextSubSeq = sub.CreationSeq
	}
	s.refreshTopicRuntime(sub.Key.Topic)
}
