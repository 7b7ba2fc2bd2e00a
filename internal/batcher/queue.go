package batcher

import (
	"sync"
)

// Queue is a thread-safe FIFO ring buffer that doubles its capacity when it
// reaches 70% full, up to a hard cap. At the cap, TrySend refuses new items.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	maxCap   int

	// Stats
	totalReceived int64
	totalSent     int64
	totalDropped  int64
	resizeCount   int
}

// NewQueue creates a queue with the given initial capacity and item cap.
// maxItems <= 0 means unbounded.
func NewQueue[T any](initialCapacity, maxItems int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxItems > 0 && initialCapacity > maxItems {
		initialCapacity = maxItems
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		maxCap:   maxItems,
	}
}

// TrySend appends an item. It returns false, and counts a drop, when the
// queue already holds maxItems.
func (q *Queue[T]) TrySend(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxCap > 0 && q.count >= q.maxCap {
		q.totalDropped++
		return false
	}

	q.ensureRoomLocked(1)

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalReceived++
	return true
}

// PushFront puts items back at the head in their original order, ahead of
// anything queued since. The cap is not enforced: these items were already
// accepted once.
func (q *Queue[T]) PushFront(items []T) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureRoomLocked(len(items))

	for i := len(items) - 1; i >= 0; i-- {
		q.head = (q.head - 1 + q.capacity) % q.capacity
		q.buf[q.head] = items[i]
		q.count++
	}
	q.totalSent -= int64(len(items))
}

// DrainTo removes up to max items (all if max <= 0) in FIFO order.
func (q *Queue[T]) DrainTo(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		result[i] = q.buf[q.head]
		q.buf[q.head] = zero // Clear reference for GC
		q.head = (q.head + 1) % q.capacity
		q.count--
		q.totalSent++
	}

	return result
}

// Len returns the current number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current backing capacity.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:         q.count,
		Capacity:      q.capacity,
		MaxItems:      q.maxCap,
		TotalReceived: q.totalReceived,
		TotalSent:     q.totalSent,
		TotalDropped:  q.totalDropped,
		ResizeCount:   q.resizeCount,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count         int   `json:"count"`
	Capacity      int   `json:"capacity"`
	MaxItems      int   `json:"max_items"`
	TotalReceived int64 `json:"total_received"`
	TotalSent     int64 `json:"total_sent"`
	TotalDropped  int64 `json:"total_dropped"`
	ResizeCount   int   `json:"resize_count"`
}

// ensureRoomLocked grows the ring until n more items fit below the 70%
// threshold (or at least fit at all). Must be called with lock held.
func (q *Queue[T]) ensureRoomLocked(n int) {
	for {
		threshold := (q.capacity * 70) / 100
		if threshold < 1 {
			threshold = 1
		}
		if q.count+n < threshold && q.count+n <= q.capacity {
			return
		}
		q.grow()
	}
}

// grow doubles the buffer capacity. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	// Copy existing items to new buffer
	if q.count > 0 {
		if q.head < q.tail {
			// Contiguous: [head...tail)
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
