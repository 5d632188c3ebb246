package bridge

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the queue's linked list
type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// Queue is an unbounded lock-free multi-producer single-consumer queue.
//
// Producers append with Push from any goroutine. Values are delivered in the order
// their Push completed (the successful CAS on the tail is the linearization point)
// through the channel returned by Recv, which exactly one goroutine should read.
type Queue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	length atomic.Int64
	out    chan *T
	closed atomic.Bool
	done   chan struct{}

	// consumer wake up
	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a queue and starts its delivery goroutine
func NewQueue[T any]() *Queue[T] {
	sentinel := &node[T]{}

	q := &Queue[T]{
		out:  make(chan *T),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.deliver()
	return q
}

// Push appends a value. It returns false if the value is nil or the queue is closed.
func (q *Queue[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// a failed CAS means another producer already advanced the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)

				// signal under the lock, otherwise the wake up could be lost between
				// the consumer's emptiness check and its Wait
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
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

// deliver moves values from the linked list to the out channel
func (q *Queue[T]) deliver() {
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next == nil {
			q.mu.Lock()
			for q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()

			if q.closed.Load() {
				return
			}
			continue
		}

		value := next.value
		select {
		case q.out <- value:
		case <-q.done:
			return
		}

		// only advance after the hand over, so Len includes the value in flight
		q.head.Store(next)
		q.length.Add(-1)
		next.value = nil
	}
}

// Recv returns the channel values are delivered on. It is closed after Close.
func (q *Queue[T]) Recv() <-chan *T {
	return q.out
}

// Close stops the queue. Further pushes fail and values not yet delivered are
// discarded. Close is idempotent.
func (q *Queue[T]) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	close(q.done)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of queued values not yet received
func (q *Queue[T]) Len() int {
	return int(q.length.Load())
}
