package validate

import (
	"strings"
	"testing"

	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
)

func TestQueue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "orders", false},
		{"with-hyphen", "order-queue", false},
		{"with-dot-underscore", "order.queue_1", false},
		{"empty", "", true},
		{"consecutive-hyphens", "bad--name", true},
		{"consecutive-underscores", "bad__name", true},
		{"consecutive-dots", "bad..name", true},
		{"leading-special", "-bad", true},
		{"trailing-special", "bad-", true},
		{"invalid-char", "bad name", true},
		{"too-long", strings.Repeat("a", 261), true},
		{"max-length-ok", strings.Repeat("a", 260), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Queue(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Queue(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && brokererr.CodeOf(err) != brokererr.InvalidName {
				t.Errorf("Queue(%q) code = %v, want InvalidName", tt.input, brokererr.CodeOf(err))
			}
		})
	}
}

func TestQueue_ConsecutiveSpecialMessage(t *testing.T) {
	err := Queue("bad--name")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "consecutive") {
		t.Errorf("error message %q does not mention consecutive special characters", err.Error())
	}
}

func TestRule_MaxLength(t *testing.T) {
	if err := Rule(strings.Repeat("a", 50)); err != nil {
		t.Errorf("50-char rule name should be valid: %v", err)
	}
	if err := Rule(strings.Repeat("a", 51)); err == nil {
		t.Error("51-char rule name should be invalid")
	}
}

func TestTopicAndSubscription(t *testing.T) {
	if err := Topic("t"); err != nil {
		t.Errorf("Topic(\"t\") should be valid: %v", err)
	}
	if err := Subscription("s1"); err != nil {
		t.Errorf("Subscription(\"s1\") should be valid: %v", err)
	}
}
