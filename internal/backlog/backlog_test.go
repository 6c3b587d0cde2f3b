package backlog

import (
	"testing"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/model"
)

func TestAppend_SequenceIncreasesFromOne(t *testing.T) {
	b := New()
	now := time.Now()
	m1 := &model.Message{ID: "a"}
	m2 := &model.Message{ID: "b"}
	b.Append(m1, now)
	b.Append(m2, now)

	if m1.SequenceNumber != 1 {
		t.Errorf("first message sequence = %d, want 1", m1.SequenceNumber)
	}
	if m2.SequenceNumber != 2 {
		t.Errorf("second message sequence = %d, want 2", m2.SequenceNumber)
	}
}

func TestPopNext_FIFOOrder(t *testing.T) {
	b := New()
	now := time.Now()
	b.Append(&model.Message{ID: "a"}, now)
	b.Append(&model.Message{ID: "b"}, now)
	b.Append(&model.Message{ID: "c"}, now)

	got := b.PopNext(2, now)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("PopNext(2) = %+v, want [a b]", got)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestPopNext_SkipsFutureScheduled(t *testing.T) {
	b := New()
	now := time.Now()
	future := now.Add(time.Hour)
	b.Append(&model.Message{ID: "scheduled", ScheduledEnqueueTime: &future}, now)
	b.Append(&model.Message{ID: "ready"}, now)

	got := b.PopNext(5, now)
	if len(got) != 1 || got[0].ID != "ready" {
		t.Fatalf("PopNext should skip future-scheduled message, got %+v", got)
	}
	if b.Len() != 1 {
		t.Errorf("scheduled message should remain in backlog, Len() = %d", b.Len())
	}
}

func TestHead_SkipsScheduled(t *testing.T) {
	b := New()
	now := time.Now()
	future := now.Add(time.Hour)
	b.Append(&model.Message{ID: "scheduled", ScheduledEnqueueTime: &future}, now)
	b.Append(&model.Message{ID: "ready"}, now)

	head, ok := b.Head(now)
	if !ok || head.ID != "ready" {
		t.Fatalf("Head() = %+v, ok=%v, want ready", head, ok)
	}
}

func TestRemove(t *testing.T) {
	b := New()
	now := time.Now()
	m := &model.Message{ID: "x"}
	b.Append(m, now)
	b.Remove(m)
	if b.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", b.Len())
	}
}

func TestAppendAtTail_NoNewSequence(t *testing.T) {
	b := New()
	now := time.Now()
	m := &model.Message{ID: "x"}
	b.Append(m, now)
	seqBefore := m.SequenceNumber
	popped := b.PopNext(1, now)[0]
	b.AppendAtTail(popped)

	if popped.SequenceNumber != seqBefore {
		t.Errorf("AppendAtTail must not reassign sequence number: got %d, want %d", popped.SequenceNumber, seqBefore)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}
