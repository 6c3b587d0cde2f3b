// Package model holds the broker's core data types: queues, topics,
// subscriptions, rules, filters, and messages, exactly as spec.md §3
// describes them. Types here carry no behaviour beyond small accessors;
// lifecycle transitions live in internal/broker.
package model

import "time"

// QueueProperties is the configuration half of a Queue.
type QueueProperties struct {
	MaxSizeInMegabytes       int
	DefaultMessageTTL        time.Duration
	LockDuration             time.Duration
	RequiresSession          bool
	RequiresDuplicateDetect  bool
	DeadLetterOnExpiry       bool
	MaxDeliveryCount         int
}

// QueueRuntimeInfo is the counters half of a Queue.
type QueueRuntimeInfo struct {
	ActiveMessageCount     int
	DeadLetterMessageCount int
	ScheduledMessageCount  int
	LockedMessageCount     int
	SizeInBytes            int64
}

// Queue is a named message entity with a single backlog.
type Queue struct {
	Name       string
	Properties QueueProperties
	Runtime    QueueRuntimeInfo
	CreatedAt  time.Time
}

// TopicProperties is the configuration half of a Topic.
type TopicProperties struct {
	MaxSizeInMegabytes      int
	DefaultMessageTTL       time.Duration
	RequiresDuplicateDetect bool
	SupportsOrdering        bool
}

// TopicRuntimeInfo is the counters half of a Topic.
type TopicRuntimeInfo struct {
	SubscriptionCount     int
	ScheduledMessageCount int
}

// Topic owns zero or more Subscriptions.
type Topic struct {
	Name       string
	Properties TopicProperties
	Runtime    TopicRuntimeInfo
	CreatedAt  time.Time
}

// SubscriptionProperties is the configuration half of a Subscription.
type SubscriptionProperties struct {
	LockDuration       time.Duration
	RequiresSession    bool
	DefaultMessageTTL  time.Duration
	AutoDeleteOnIdle   time.Duration
	DeadLetterOnExpiry bool
	MaxDeliveryCount   int
	ForwardTo          string
}

// SubscriptionRuntimeInfo is the counters half of a Subscription.
type SubscriptionRuntimeInfo struct {
	ActiveMessageCount     int
	DeadLetterMessageCount int
	ScheduledMessageCount  int
	LockedMessageCount     int
}

// SubscriptionKey uniquely identifies a subscription under its topic.
type SubscriptionKey struct {
	Topic        string
	Subscription string
}

// Subscription is a named, filtered attachment to a Topic. Rules is kept in
// insertion order; evaluation order matters per spec.md §4.B.
type Subscription struct {
	Key        SubscriptionKey
	Properties SubscriptionProperties
	Rules      []*Rule
	Runtime    SubscriptionRuntimeInfo
	CreatedAt  time.Time

	// CreationSeq is the store's monotonic creation counter, used to list
	// and fan out to subscriptions in creation order rather than by name
	// (spec.md §4.H: fan-out snapshots the subscription list in stable,
	// creation order).
	CreationSeq int64
}

// FilterKind tags a Filter's payload variant.
type FilterKind string

const (
	FilterTrue        FilterKind = "TrueFilter"
	FilterFalse       FilterKind = "FalseFilter"
	FilterCorrelation FilterKind = "CorrelationFilter"
	FilterSQL         FilterKind = "SqlFilter"
)

// CorrelationFilter holds optional equality constraints. A nil pointer
// field means "unconstrained"; UserProperties entries are only checked
// when present in the map.
type CorrelationFilter struct {
	CorrelationID *string
	ContentType   *string
	Label         *string
	MessageID     *string
	ReplyTo       *string
	SessionID     *string
	To            *string
	UserProperties map[string]string
}

// Filter is a tagged union over the four filter variants spec.md §3/§4.B
// names. Exactly one of CorrelationFilter/SQLExpression is populated,
// depending on Kind.
type Filter struct {
	Kind              FilterKind
	CorrelationFilter *CorrelationFilter
	SQLExpression     string
}

// Rule is a named filter within a subscription.
type Rule struct {
	Name      string
	Filter    Filter
	CreatedAt time.Time
}

// Message is the durable unit of data moved through the broker. Fields
// above the "broker-assigned" comment are caller-supplied, except ID, which
// internal/broker mints; fields below are set exclusively by internal/broker.
type Message struct {
	ID                  string
	SessionID           string
	CorrelationID       string
	ContentType         string
	Label               string
	To                  string
	ReplyTo             string
	TimeToLive          time.Duration
	ScheduledEnqueueTime *time.Time
	UserProperties      map[string]string
	Body                []byte

	// broker-assigned
	EnqueuedTime        time.Time
	SequenceNumber      int64
	DeliveryCount       int
	LockToken           string
	LockedUntil         *time.Time
	IsLocked            bool
	IsDeadLettered      bool
	DeadLetterReason    string
	DeadLetterDescription string
}

// Clone returns a deep copy of m, used by the fan-out router to give each
// matching subscription an independent copy (spec.md §3: "A Message, once
// published to a topic, is cloned per matching subscription").
func (m *Message) Clone() *Message {
	clone := *m
	if m.UserProperties != nil {
		clone.UserProperties = make(map[string]string, len(m.UserProperties))
		for k, v := range m.UserProperties {
			clone.UserProperties[k] = v
		}
	}
	if m.Body != nil {
		clone.Body = append([]byte(nil), m.Body...)
	}
	if m.ScheduledEnqueueTime != nil {
		t := *m.ScheduledEnqueueTime
		clone.ScheduledEnqueueTime = &t
	}
	// Lock state and sequence number are never carried across a clone; the
	// fan-out router assigns fresh values per subscription.
	clone.SequenceNumber = 0
	clone.DeliveryCount = 0
	clone.LockToken = ""
	clone.LockedUntil = nil
	clone.IsLocked = false
	clone.IsDeadLettered = false
	clone.DeadLetterReason = ""
	clone.DeadLetterDescription = ""
	return &clone
}

// IsScheduledFor reports whether m is scheduled to enqueue in the future
// relative to now (spec.md §9: scheduled messages stay in the backlog and
// are skipped by receive until their deadline passes).
func (m *Message) IsScheduledFor(now time.Time) bool {
	return m.ScheduledEnqueueTime != nil && m.ScheduledEnqueueTime.After(now)
}
