package scan

import (
	"testing"
	"time"
)

func batchAt(unix int64) *Batch {
	return &Batch{
		Timestamp: time.Unix(unix, 0),
		Samples:   []Sample{{Frequency: 100, Power: -50}},
	}
}

func TestBatchQueue_FIFO(t *testing.T) {
	q := NewBatchQueue(4)

	for i := int64(1); i <= 3; i++ {
		if evicted := q.Push(batchAt(i)); evicted {
			t.Errorf("push %d evicted below capacity", i)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	for i := int64(1); i <= 3; i++ {
		b := q.Pop()
		if b == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if got := b.Timestamp.Unix(); got != i {
			t.Errorf("pop %d returned batch at %d", i, got)
		}
	}
	if b := q.Pop(); b != nil {
		t.Errorf("pop on empty queue returned %v", b)
	}
}

func TestBatchQueue_EvictsOldestWhenFull(t *testing.T) {
	q := NewBatchQueue(2)

	q.Push(batchAt(1))
	q.Push(batchAt(2))
	if evicted := q.Push(batchAt(3)); !evicted {
		t.Error("push at capacity should report eviction")
	}

	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	if got := q.Pop().Timestamp.Unix(); got != 2 {
		t.Errorf("oldest surviving batch at %d, want 2", got)
	}
	if got := q.Pop().Timestamp.Unix(); got != 3 {
		t.Errorf("newest batch at %d, want 3", got)
	}
}

func TestBatchQueue_IgnoresNil(t *testing.T) {
	q := NewBatchQueue(2)
	q.Push(nil)
	if q.Len() != 0 {
		t.Errorf("Len() = %d after pushing nil, want 0", q.Len())
	}
}

func TestQueueSource(t *testing.T) {
	s := NewQueueSource(8)
	if !s.Healthy() {
		t.Fatal("fresh source should be healthy")
	}
	if b := s.Poll(); b != nil {
		t.Errorf("poll on empty source returned %v", b)
	}

	s.Push(batchAt(1))
	b := s.Poll()
	if b == nil || b.Timestamp.Unix() != 1 {
		t.Errorf("poll returned %v, want batch at 1", b)
	}

	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s.Healthy() {
		t.Error("source should be unhealthy after shutdown")
	}
	if err := s.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestConfigCanonical(t *testing.T) {
	a := Config{"gain": 30.0, "sample_rate": 2048000.0}
	b := Config{"sample_rate": 2048000.0, "gain": 30.0}
	c := Config{"gain": 40.0, "sample_rate": 2048000.0}

	if !a.Equal(b) {
		t.Error("key order should not affect equality")
	}
	if a.Equal(c) {
		t.Error("differing values compared equal")
	}
	if Config(nil).Canonical() != "" {
		t.Error("nil config should canonicalize to the empty string")
	}
}
