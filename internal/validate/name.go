// Package validate implements the syntactic name rules of spec.md §4.A: a
// pure, stateless checker for queue, topic, subscription, and rule names.
// It combines a compiled character-class regex with a short procedural
// scan for the "no two consecutive specials" rule, the way pubsub-gui's
// internal/templates/validator.go layers procedural edge-case checks on
// top of a structural check rather than trying to cram everything into one
// regular expression.
package validate

import (
	"regexp"

	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/model"
)

var allowedChars = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isSpecial(b byte) bool {
	return b == '-' || b == '_' || b == '.'
}

// validate is the shared implementation behind the four exported entry
// points; kind names which one raised the error, for the InvalidName
// message.
func validate(kind, name string, maxLen int) error {
	if name == "" {
		return brokererr.Named(brokererr.InvalidName, name, kind+" name cannot be empty")
	}
	if len(name) > maxLen {
		return brokererr.Named(brokererr.InvalidName, name, kind+" name exceeds maximum length")
	}
	if !allowedChars.MatchString(name) {
		return brokererr.Named(brokererr.InvalidName, name, kind+" name contains characters other than alphanumeric, hyphen, underscore, or period")
	}
	if !isAlnum(name[0]) {
		return brokererr.Named(brokererr.InvalidName, name, kind+" name must start with an alphanumeric character")
	}
	if !isAlnum(name[len(name)-1]) {
		return brokererr.Named(brokererr.InvalidName, name, kind+" name must end with an alphanumeric character")
	}
	for i := 1; i < len(name); i++ {
		if isSpecial(name[i]) && isSpecial(name[i-1]) {
			return brokererr.Named(brokererr.InvalidName, name, kind+" name cannot contain consecutive special characters")
		}
	}
	return nil
}

// Queue validates a queue name: length 1-260, the shared character policy.
func Queue(name string) error {
	return validate("queue", name, model.MaxEntityNameLen)
}

// Topic validates a topic name: length 1-260, the shared character policy.
func Topic(name string) error {
	return validate("topic", name, model.MaxEntityNameLen)
}

// Subscription validates a subscription name: length 1-260, the shared
// character policy.
func Subscription(name string) error {
	return validate("subscription", name, model.MaxEntityNameLen)
}

// Rule validates a rule name: length 1-50, the shared character policy.
func Rule(name string) error {
	return validate("rule", name, model.MaxRuleNameLen)
}
