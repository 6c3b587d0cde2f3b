package metrics

import (
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/ports"
)

// Noop implements ports.Metrics with no-ops, for tests and for brokers
// configured without a metrics backend.
type Noop struct{}

func (Noop) CountSend(ports.EntityKind, string)              {}
func (Noop) CountReceive(ports.EntityKind, string)            {}
func (Noop) CountComplete(ports.EntityKind, string)            {}
func (Noop) CountAbandon(ports.EntityKind, string)              {}
func (Noop) CountDeadLetter(ports.EntityKind, string, string)   {}
func (Noop) CountError(string, string)                          {}
func (Noop) ObserveSendDuration(ports.EntityKind, string, time.Duration)       {}
func (Noop) ObserveReceiveDuration(ports.EntityKind, string, time.Duration)    {}
func (Noop) ObserveMessageSize(ports.EntityKind, string, int)                  {}
func (Noop) ObserveFilterEvalDuration(string, string, time.Duration)           {}
func (Noop) SetActiveGauge(ports.EntityKind, string, int)                     {}
func (Noop) SetDeadLetterGauge(ports.EntityKind, string, int)                 {}
func (Noop) SetScheduledGauge(ports.EntityKind, string, int)                  {}
func (Noop) SetLockedGauge(ports.EntityKind, string, int)                     {}
func (Noop) SetEntityCountGauge(ports.EntityKind, int)                        {}
