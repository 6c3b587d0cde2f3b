// Package fanout implements the topic fan-out router (spec.md §4.H):
// given a published message, evaluate every subscription's rules and
// enqueue a clone into each subscription whose rules accept it.
// Directly grounded on backend.py's send_to_topic/
// _message_matches_subscription: iterate subscriptions, OR their rules'
// filter results, clone-and-enqueue on the first match, skip the rest of
// that subscription's rules once matched.
package fanout

import (
	"time"

	"github.com/samber/lo"

	"github.com/oladejiayo/localzure-sub001/internal/backlog"
	"github.com/oladejiayo/localzure-sub001/internal/filter"
	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Result describes one subscription's fan-out outcome, for callers that
// want to log/meter per-subscription filter evaluation (spec.md §4.J:
// "ObserveFilterEvalDuration(topic, subscription)").
type Result struct {
	Subscription model.SubscriptionKey
	Matched      bool
	EvalDuration time.Duration
}

// Route evaluates msg against every subscription in subs (in the order
// given — spec.md's creation order) and appends a clone to the matching
// subscriptions' backlogs. backlogs must contain an entry for every key
// in subs.
func Route(msg *model.Message, subs []*model.Subscription, backlogs map[model.SubscriptionKey]*backlog.Backlog, now time.Time) []Result {
	return lo.Map(subs, func(sub *model.Subscription, _ int) Result {
		matched, dur := matches(sub, msg)
		if matched {
			if b, ok := backlogs[sub.Key]; ok {
				b.Append(msg.Clone(), now)
			}
		}
		return Result{Subscription: sub.Key, Matched: matched, EvalDuration: dur}
	})
}

// matches reports whether any of sub's rules accept msg, matching
// backend.py's "no rules means TrueFilter" fallback (NewSubscription
// always seeds "$Default" so this is defensive, not load-bearing).
func matches(sub *model.Subscription, msg *model.Message) (bool, time.Duration) {
	if len(sub.Rules) == 0 {
		return true, 0
	}
	start := time.Now()
	for _, rule := range sub.Rules {
		if filter.Evaluate(rule.Filter, msg) {
			return true, time.Since(start)
		}
	}
	return false, time.Since(start)
}
