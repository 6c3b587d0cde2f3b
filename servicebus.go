// Package servicebus is the public façade over the broker core: a single
// entry point that wires internal/broker.Broker to its ports and
// re-exports the handful of types a caller needs, so a consumer never has
// to import internal/ subpackages directly.
package servicebus

import (
	"context"

	"github.com/oladejiayo/localzure-sub001/internal/broker"
	"github.com/oladejiayo/localzure-sub001/internal/brokerconfig"
	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Re-exported types so callers only ever import this package.
type (
	Queue               = model.Queue
	Topic               = model.Topic
	Subscription        = model.Subscription
	Rule                = model.Rule
	Message             = model.Message
	Filter              = model.Filter
	QueueOptions        = model.QueueOptions
	TopicOptions        = model.TopicOptions
	SubscriptionOptions = model.SubscriptionOptions
	SubscriptionKey     = model.SubscriptionKey

	Config = brokerconfig.Config
	Deps   = broker.Deps

	SendRequest = broker.SendRequest
	ReceiveMode = broker.ReceiveMode
)

const (
	PeekLock         = broker.PeekLock
	ReceiveAndDelete = broker.ReceiveAndDelete
)

var NewDefaultConfig = brokerconfig.NewDefaultConfig

// Broker is the emulator's entry point: every queue/topic/subscription
// operation in spec.md §4 is a method here, delegating straight to
// internal/broker.Broker.
type Broker struct {
	*broker.Broker
}

// New builds a Broker over cfg (or the defaults, if nil), wiring deps (or
// no-op fallbacks for anything left unset).
func New(cfg *Config, deps Deps) *Broker {
	return &Broker{Broker: broker.New(cfg, deps)}
}

// StartMaintenance launches the background lock-expiry/gauge-refresh loop
// (spec.md §4.I), which also writes periodic snapshots when persistence is
// configured; cancel ctx to stop it. Receives also sweep expired leases on
// their own entity, and the other lock operations reclaim the lease of the
// token they are given once it has expired.
func (b *Broker) StartMaintenance(ctx context.Context) <-chan struct{} {
	return b.Broker.StartMaintenance(ctx)
}
