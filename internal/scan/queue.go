package scan

import "sync"

// BatchQueue is a bounded, thread-safe FIFO of scan batches. The network
// receiver pushes into it from its reader goroutines and the processing loop
// drains it non-blockingly. When the queue is full the oldest batch is
// dropped to keep the memory footprint fixed; the caller is told how many
// were lost.
type BatchQueue struct {
	mu       sync.Mutex
	batches  []*Batch
	capacity int
	dropped  uint64
}

// NewBatchQueue creates a queue holding at most capacity batches.
// A non-positive capacity falls back to 1.
func NewBatchQueue(capacity int) *BatchQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BatchQueue{capacity: capacity}
}

// Push appends a batch, evicting the oldest entry when full.
// It reports whether an eviction happened.
func (q *BatchQueue) Push(b *Batch) bool {
	if b == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.batches) >= q.capacity {
		copy(q.batches, q.batches[1:])
		q.batches = q.batches[:len(q.batches)-1]
		q.dropped++
		evicted = true
	}
	q.batches = append(q.batches, b)
	return evicted
}

// Pop removes and returns the oldest batch, or nil when the queue is empty.
func (q *BatchQueue) Pop() *Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil
	}
	b := q.batches[0]
	q.batches[0] = nil
	q.batches = q.batches[1:]
	return b
}

// Len returns the number of pending batches.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Dropped returns the total number of batches evicted since creation.
func (q *BatchQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// QueueSource is an in-memory Source backed by a BatchQueue. It is used in
// tests and wherever batches are produced in-process.
type QueueSource struct {
	queue *BatchQueue

	mu      sync.Mutex
	healthy bool
}

// NewQueueSource creates a healthy in-memory source with the given capacity.
func NewQueueSource(capacity int) *QueueSource {
	return &QueueSource{
		queue:   NewBatchQueue(capacity),
		healthy: true,
	}
}

// Push enqueues a batch for later polling.
func (s *QueueSource) Push(b *Batch) { s.queue.Push(b) }

// SetHealthy overrides the health flag, e.g. to simulate a dying collaborator.
func (s *QueueSource) SetHealthy(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = v
}

func (s *QueueSource) Poll() *Batch { return s.queue.Pop() }

func (s *QueueSource) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

func (s *QueueSource) Shutdown() error {
	s.SetHealthy(false)
	return nil
}
