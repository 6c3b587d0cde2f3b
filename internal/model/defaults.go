package model

import "time"

// Defaults and quotas. spec.md leaves these unpinned; values mirror the
// published Azure Service Bus standard-tier limits that the original
// Python implementation (models.py) validates against.
const (
	DefaultMaxSizeMB        = 1024
	MinMaxSizeMB            = 1024
	MaxMaxSizeMB            = 5120
	MinLockDurationSeconds  = 5
	MaxLockDurationSeconds  = 300
	MinMaxDeliveryCount     = 1
	MaxMaxDeliveryCount     = 2000
	DefaultMaxDeliveryCount = 10

	MaxQueues                = 10000
	MaxTopics                = 10000
	MaxSubscriptionsPerTopic = 2000

	MaxEntityNameLen = 260
	MaxRuleNameLen   = 50

	MaxMessageSizeBytes = 256 * 1024

	DefaultRuleName = "$Default"
)

// DefaultMessageTTL is 14 days, matching Azure Service Bus's default.
var DefaultMessageTTL = 14 * 24 * time.Hour

// DefaultLockDuration is 60 seconds.
var DefaultLockDuration = 60 * time.Second
