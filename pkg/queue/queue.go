// Package queue provides the unbounded FIFO used to hand work between the
// observer's goroutines. Producers never block, which keeps OS hook callbacks
// cheap; consumers wait with a timeout so they can poll for shutdown.
package queue

import (
	"sync"
	"time"
)

// Status describes the outcome of Get.
type Status int

const (
	// Empty means the timeout elapsed with nothing queued.
	Empty Status = iota
	// Item means a value was dequeued.
	Item
	// Sentinel means a shutdown marker was dequeued.
	Sentinel
)

func (s Status) String() string {
	switch s {
	case Item:
		return "item"
	case Sentinel:
		return "sentinel"
	default:
		return "empty"
	}
}

type slot[T any] struct {
	value    T
	sentinel bool
}

// Queue is a FIFO of T interleaved with sentinel markers.
// The zero value is not usable; construct with New.
type Queue[T any] struct {
	mu    sync.Mutex
	items []slot[T]
	ready chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Put appends v. It never blocks.
func (q *Queue[T]) Put(v T) {
	q.push(slot[T]{value: v})
}

// PutSentinel appends a shutdown marker. Sentinels are never returned as items.
func (q *Queue[T]) PutSentinel() {
	q.push(slot[T]{sentinel: true})
}

func (q *Queue[T]) push(s slot[T]) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Get removes the head of the queue, waiting up to timeout for one to arrive.
func (q *Queue[T]) Get(timeout time.Duration) (T, Status) {
	var timer *time.Timer
	for {
		if v, status, ok := q.pop(); ok {
			if timer != nil {
				timer.Stop()
			}
			return v, status
		}
		if timer == nil {
			if timeout <= 0 {
				var zero T
				return zero, Empty
			}
			timer = time.NewTimer(timeout)
		}
		select {
		case <-q.ready:
		case <-timer.C:
			if v, status, ok := q.pop(); ok {
				return v, status
			}
			var zero T
			return zero, Empty
		}
	}
}

func (q *Queue[T]) pop() (T, Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, Empty, false
	}
	head := q.items[0]
	q.items[0] = slot[T]{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	if head.sentinel {
		return zero, Sentinel, true
	}
	return head.value, Item, true
}

// Drain removes every queued entry and returns the items in order, skipping
// sentinels.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	out := make([]T, 0, len(pending))
	for _, s := range pending {
		if s.sentinel {
			continue
		}
		out = append(out, s.value)
	}
	return out
}

// Len reports the number of queued entries, sentinels included.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
