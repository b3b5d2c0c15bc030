// Package equeue implements the active-object event queue (C4): a
// single-producer-safe-with-critical-section bounded FIFO with a front
// slot plus a ring buffer, supporting FIFO post, LIFO post, and get.
//
// Ported from the QP/C++ QEQueue / QActive native queue (qf_actq.cpp).
// The ring is written tail-first with a head that descends (wrapping),
// exactly mirroring the original so the wrap-around arithmetic (and the
// resulting test vectors) line up.
package equeue

import (
	"fmt"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
)

// NoMargin requests a post that must succeed; failing it is fatal.
const NoMargin = mpool.NoMargin

// Signaler is notified when an event is delivered directly to the front of
// a previously-empty queue — the hook the scheduler uses to mark the
// owning active object ready.
type Signaler interface {
	SignalReady()
}

// Queue is a bounded FIFO of *qevt.Envelope with LIFO-post override.
//
// Invariants (spec.md C4): an empty queue has front == nil and
// nFree == cap(ring)+1; front is always the next event to consume; the
// ring never holds more than cap(ring) events (the front slot counts as
// one more).
type Queue struct {
	cs    *critsec.Section
	pools *mpool.Table
	sig   Signaler

	front *qevt.Envelope
	ring  []*qevt.Envelope
	head  int // next slot to write on FIFO post (descends, wraps)
	tail  int // next slot to read on get (descends, wraps)
	end   int // len(ring) - 1

	nFree    int
	nMinFree int
}

// New creates a queue with the given ring capacity (not counting the front
// slot). pools is used to gc events dropped on a failed margin-gated post;
// sig is notified whenever the queue transitions from empty to non-empty.
func New(capacity int, pools *mpool.Table, sig Signaler, cs *critsec.Section) *Queue {
	q := &Queue{
		cs:    cs,
		pools: pools,
		sig:   sig,
		ring:  make([]*qevt.Envelope, capacity),
		end:   capacity - 1,
	}
	q.nFree = capacity + 1
	q.nMinFree = q.nFree
	return q
}

// Cap returns the ring capacity (excluding the front slot).
func (q *Queue) Cap() int { return len(q.ring) }

// NFree returns the current free-slot count (front slot included).
func (q *Queue) NFree() int {
	q.cs.Enter()
	defer q.cs.Exit()
	return q.nFree
}

// MinFree returns the all-time-low free-slot count.
func (q *Queue) MinFree() int {
	q.cs.Enter()
	defer q.cs.Exit()
	return q.nMinFree
}

// PostFIFO enqueues e at the back of the queue (or directly to front if
// empty). margin is the minimum number of free slots required to remain
// after this post; margin == NoMargin means the post must succeed.
//
// Returns false if margin is not satisfied and margin != NoMargin — in
// that case e is gc'd so the caller does not leak it. If margin ==
// NoMargin and the queue is full, this is a fatal overflow and PostFIFO
// panics.
func (q *Queue) PostFIFO(e *qevt.Envelope, margin uint) bool {
	q.cs.Enter()
	nFree := q.nFree

	var canPost bool
	if margin == NoMargin {
		if nFree > 0 {
			canPost = true
		} else {
			q.cs.Exit()
			panic("equeue: queue overflow with NoMargin")
		}
	} else {
		canPost = nFree > int(margin)
	}

	if !e.IsStatic() {
		e.RefCtr++
	}

	if !canPost {
		q.cs.Exit()
		q.pools.GC(e)
		return false
	}

	nFree--
	q.nFree = nFree
	if nFree < q.nMinFree {
		q.nMinFree = nFree
	}

	var becameReady bool
	if q.front == nil {
		q.front = e
		becameReady = true
	} else {
		q.ring[q.head] = e
		if q.head == 0 {
			q.head = q.end
		} else {
			q.head--
		}
	}
	q.cs.Exit()

	if becameReady && q.sig != nil {
		q.sig.SignalReady()
	}
	return true
}

// PostLIFO enqueues e at the front of the queue, displacing the current
// front event (if any) into the ring. Precondition: the queue must have a
// free slot; overflow is a fatal contract violation, matching the
// original's Q_ASSERT_CRIT_(210, nFree != 0).
func (q *Queue) PostLIFO(e *qevt.Envelope) {
	q.cs.Enter()
	nFree := q.nFree
	if nFree == 0 {
		q.cs.Exit()
		panic("equeue: LIFO post overflow")
	}

	if !e.IsStatic() {
		e.RefCtr++
	}

	nFree--
	q.nFree = nFree
	if nFree < q.nMinFree {
		q.nMinFree = nFree
	}

	prevFront := q.front
	q.front = e

	var becameReady bool
	if prevFront == nil {
		becameReady = true
	} else {
		q.tail++
		if q.tail == len(q.ring) {
			q.tail = 0
		}
		q.ring[q.tail] = prevFront
	}
	q.cs.Exit()

	if becameReady && q.sig != nil {
		q.sig.SignalReady()
	}
}

// Get removes and returns the front event, refilling front from the ring's
// tail if any events remain. Returns nil if the queue was empty.
//
// The returned event's reference count is unchanged: the caller now owns
// the single reference that PostFIFO/PostLIFO counted.
func (q *Queue) Get() *qevt.Envelope {
	q.cs.Enter()
	defer q.cs.Exit()

	e := q.front
	if e == nil {
		return nil
	}

	nFree := q.nFree + 1
	q.nFree = nFree

	if nFree <= len(q.ring) {
		q.front = q.ring[q.tail]
		if q.tail == 0 {
			q.tail = q.end
		} else {
			q.tail--
		}
	} else {
		q.front = nil
		if nFree != len(q.ring)+1 {
			panic(fmt.Sprintf("equeue: free-count invariant violated: nFree=%d cap=%d", nFree, len(q.ring)))
		}
	}
	return e
}

// Empty reports whether the queue currently has no front event.
func (q *Queue) Empty() bool {
	q.cs.Enter()
	defer q.cs.Exit()
	return q.front == nil
}
