// Package broker implements the Lifecycle Engine (spec.md §4.G), the
// core of the broker: send/receive/complete/abandon/dead-letter/renew
// for queues and subscriptions, topic publish via the fan-out router,
// the lock-expiry sweep, and the background maintenance loop. Every
// mutating call is serialized by one broker-wide mutex (spec.md §5),
// generalizing the single map+mutex ownership pattern pubsub-gui's
// internal/emulator.Manager uses for its running-process table.
package broker

import (
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// ReceiveMode selects between leasing a message (PeekLock) or removing
// it immediately (ReceiveAndDelete), per spec.md §4.G.
type ReceiveMode int

const (
	PeekLock ReceiveMode = iota
	ReceiveAndDelete
)

// SendRequest is the caller-supplied half of a Message; the broker fills
// in the UUID and the broker-assigned fields (spec.md §3).
type SendRequest struct {
	SessionID            string
	CorrelationID        string
	ContentType          string
	Label                string
	To                   string
	ReplyTo              string
	TimeToLive           time.Duration
	ScheduledEnqueueTime *time.Time
	UserProperties       map[string]string
	Body                 []byte
}

func (r SendRequest) toMessage(id string) *model.Message {
	return &model.Message{
		ID:                   id,
		SessionID:            r.SessionID,
		CorrelationID:        r.CorrelationID,
		ContentType:          r.ContentType,
		Label:                r.Label,
		To:                   r.To,
		ReplyTo:              r.ReplyTo,
		TimeToLive:           r.TimeToLive,
		ScheduledEnqueueTime: r.ScheduledEnqueueTime,
		UserProperties:       r.UserProperties,
		Body:                 r.Body,
	}
}
