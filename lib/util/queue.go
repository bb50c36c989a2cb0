package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// queueNode is a single element of the queue
type queueNode[T any] struct {
	value T
	next  atomic.Pointer[queueNode[T]]
}

// Queue is an unbounded lock-free multi-producer single-consumer queue.
//
// Any number of goroutines may Push concurrently; values are delivered to a
// single consumer through the channel returned by Recv. With one producer
// the order is FIFO, with several producers values are ordered by which Push
// completed first.
type Queue[T any] struct {
	head   atomic.Pointer[queueNode[T]]
	tail   atomic.Pointer[queueNode[T]]
	out    chan T
	closed atomic.Bool

	// number of Push calls between their closed check and their append
	pushing atomic.Int64

	// wakes the forwarding goroutine
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a queue and starts the goroutine feeding Recv
func NewQueue[T any]() *Queue[T] {
	sentinel := &queueNode[T]{}

	q := &Queue[T]{
		out: make(chan T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.forward()
	return q
}

// Push appends value to the queue. It returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	q.pushing.Add(1)
	defer func() {
		q.pushing.Add(-1)
		q.signal()
	}()

	if q.closed.Load() {
		return false
	}

	n := &queueNode[T]{value: value}
	var backoff uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// may fail if another producer already moved the tail
				q.tail.CompareAndSwap(tail, n)
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// signal wakes the forwarding goroutine. The lock makes sure the wakeup is
// not lost between its emptiness check and Wait.
func (q *Queue[T]) signal() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// forward moves values from the linked list to the out channel
func (q *Queue[T]) forward() {
	defer close(q.out)

	var zero T
	for {
		forwarded := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			forwarded = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the node is the new sentinel, drop its value for the gc
			next.value = zero
		}

		if forwarded {
			continue
		}

		// a Push that passed its closed check before Close may still append
		if q.drained() {
			return
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !(q.closed.Load() && q.pushing.Load() == 0) {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// drained reports whether the queue is closed, no Push is in flight and
// nothing is left to forward. The loads must happen in this order.
func (q *Queue[T]) drained() bool {
	return q.closed.Load() && q.pushing.Load() == 0 && q.head.Load().next.Load() == nil
}

// Recv returns the channel delivering the queued values. It is closed after
// Close once all values were delivered.
func (q *Queue[T]) Recv() <-chan T {
	return q.out
}

// Close prevents further pushes. Values already queued are still delivered.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
	q.signal()
}

// IsClosed returns true if the queue is closed
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len counts the queued values. This is O(n) and meant for debugging.
func (q *Queue[T]) Len() int {
	count := 0
	for n := q.head.Load().next.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}
