package locktable

import (
	"testing"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

func TestGrant_DistinctTokens(t *testing.T) {
	lt := New()
	now := time.Now()
	m1 := &model.Message{ID: "a"}
	m2 := &model.Message{ID: "b"}
	tok1, _ := lt.Grant(m1, time.Minute, now)
	tok2, _ := lt.Grant(m2, time.Minute, now)

	if tok1 == "" || tok2 == "" {
		t.Fatal("tokens must be non-empty")
	}
	if tok1 == tok2 {
		t.Fatal("concurrent leases must never share a token")
	}
}

func TestLookup_UnknownToken(t *testing.T) {
	lt := New()
	if _, _, ok := lt.Lookup("nope"); ok {
		t.Error("Lookup of unknown token should report not found")
	}
}

func TestRenew_ExtendsDeadlineByExactlyOneLockDuration(t *testing.T) {
	lt := New()
	now := time.Now()
	m := &model.Message{ID: "a"}
	tok, _ := lt.Grant(m, 30*time.Second, now)

	later := now.Add(10 * time.Second)
	d1, ok := lt.Renew(tok, 30*time.Second, later)
	if !ok {
		t.Fatal("renew should succeed")
	}
	if !d1.Equal(later.Add(30 * time.Second)) {
		t.Errorf("deadline = %v, want %v", d1, later.Add(30*time.Second))
	}

	evenLater := later.Add(5 * time.Second)
	d2, ok := lt.Renew(tok, 30*time.Second, evenLater)
	if !ok {
		t.Fatal("second renew should succeed")
	}
	if !d2.Equal(evenLater.Add(30 * time.Second)) {
		t.Errorf("second deadline = %v, want %v", d2, evenLater.Add(30*time.Second))
	}
}

func TestExpired(t *testing.T) {
	lt := New()
	now := time.Now()
	m := &model.Message{ID: "a"}
	tok, _ := lt.Grant(m, time.Second, now)

	if expired := lt.Expired(now); len(expired) != 0 {
		t.Errorf("should not be expired yet: %v", expired)
	}

	later := now.Add(2 * time.Second)
	expired := lt.Expired(later)
	if len(expired) != 1 || expired[0] != tok {
		t.Errorf("Expired(later) = %v, want [%s]", expired, tok)
	}
}

func TestRelease(t *testing.T) {
	lt := New()
	now := time.Now()
	tok, _ := lt.Grant(&model.Message{ID: "a"}, time.Minute, now)
	lt.Release(tok)
	if _, _, ok := lt.Lookup(tok); ok {
		t.Error("token should be gone after Release")
	}
	if lt.Len() != 0 {
		t.Errorf("Len() = %d, want 0", lt.Len())
	}
}
