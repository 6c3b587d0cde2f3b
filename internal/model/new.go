package model

import "time"

// QueueOptions carries caller-supplied overrides for queue creation/update;
// zero values mean "use the default".
type QueueOptions struct {
	MaxSizeInMegabytes      int
	DefaultMessageTTL       time.Duration
	LockDuration            time.Duration
	RequiresSession         bool
	RequiresDuplicateDetect bool
	DeadLetterOnExpiry      bool
	MaxDeliveryCount        int
}

// NewQueue builds a Queue with defaults applied for zero-valued options.
func NewQueue(name string, opts QueueOptions, now time.Time) *Queue {
	props := QueueProperties{
		MaxSizeInMegabytes:      orInt(opts.MaxSizeInMegabytes, DefaultMaxSizeMB),
		DefaultMessageTTL:       orDuration(opts.DefaultMessageTTL, DefaultMessageTTL),
		LockDuration:            orDuration(opts.LockDuration, DefaultLockDuration),
		RequiresSession:         opts.RequiresSession,
		RequiresDuplicateDetect: opts.RequiresDuplicateDetect,
		DeadLetterOnExpiry:      opts.DeadLetterOnExpiry,
		MaxDeliveryCount:        orInt(opts.MaxDeliveryCount, DefaultMaxDeliveryCount),
	}
	return &Queue{Name: name, Properties: props, CreatedAt: now}
}

// TopicOptions mirrors QueueOptions for topics.
type TopicOptions struct {
	MaxSizeInMegabytes      int
	DefaultMessageTTL       time.Duration
	RequiresDuplicateDetect bool
	SupportsOrdering        bool
}

// NewTopic builds a Topic with defaults applied for zero-valued options.
func NewTopic(name string, opts TopicOptions, now time.Time) *Topic {
	props := TopicProperties{
		MaxSizeInMegabytes:      orInt(opts.MaxSizeInMegabytes, DefaultMaxSizeMB),
		DefaultMessageTTL:       orDuration(opts.DefaultMessageTTL, DefaultMessageTTL),
		RequiresDuplicateDetect: opts.RequiresDuplicateDetect,
		SupportsOrdering:        opts.SupportsOrdering,
	}
	return &Topic{Name: name, Properties: props, CreatedAt: now}
}

// SubscriptionOptions mirrors QueueOptions for subscriptions.
type SubscriptionOptions struct {
	LockDuration       time.Duration
	RequiresSession    bool
	DefaultMessageTTL  time.Duration
	AutoDeleteOnIdle   time.Duration
	DeadLetterOnExpiry bool
	MaxDeliveryCount   int
	ForwardTo          string
}

// NewSubscription builds a Subscription seeded with the single "$Default"
// always-true rule spec.md §3 mandates for freshly created subscriptions.
func NewSubscription(key SubscriptionKey, opts SubscriptionOptions, now time.Time) *Subscription {
	props := SubscriptionProperties{
		LockDuration:       orDuration(opts.LockDuration, DefaultLockDuration),
		RequiresSession:    opts.RequiresSession,
		DefaultMessageTTL:  orDuration(opts.DefaultMessageTTL, DefaultMessageTTL),
		AutoDeleteOnIdle:   opts.AutoDeleteOnIdle,
		DeadLetterOnExpiry: opts.DeadLetterOnExpiry,
		MaxDeliveryCount:   orInt(opts.MaxDeliveryCount, DefaultMaxDeliveryCount),
		ForwardTo:          opts.ForwardTo,
	}
	sub := &Subscription{Key: key, Properties: props, CreatedAt: now}
	sub.Rules = []*Rule{{
		Name:      DefaultRuleName,
		Filter:    Filter{Kind: FilterTrue},
		CreatedAt: now,
	}}
	return sub
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
