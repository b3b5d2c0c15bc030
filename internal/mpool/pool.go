// Package mpool implements the fixed-block event pool (C3): a tiered
// allocator with an intrusive free list, registered in strictly ascending
// block-size order and selected by first-fit.
//
// Ported from the QP/C++ QMPool (qf_mem.cpp): get/put under a critical
// section, margin-gated allocation, and a running minimum-free watermark.
package mpool

import (
	"fmt"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/qevt"
)

// NoMargin requests an allocation that must succeed; failing it is fatal.
const NoMargin = ^uint(0)

// Pool is a single fixed-block-size free list.
//
// BlockSize is a capacity class, not a byte count: it bounds what payload
// sizes this pool is willing to serve (see Table.New), matching the
// original's block-size-driven pool selection without requiring Go code to
// manage raw byte blocks the way the C original does.
type Pool struct {
	blockSize int
	total     int
	free      int
	minFree   int
	freeHead  *qevt.Envelope
}

// NewPool preallocates n envelopes of the given capacity class.
func NewPool(blockSize, n int) *Pool {
	p := &Pool{blockSize: blockSize, total: n, free: n, minFree: n}
	var head *qevt.Envelope
	for i := 0; i < n; i++ {
		head = &qevt.Envelope{Next: head}
	}
	p.freeHead = head
	return p
}

// BlockSize returns the pool's capacity class.
func (p *Pool) BlockSize() int { return p.blockSize }

// Free returns the current free-block count.
func (p *Pool) Free() int { return p.free }

// MinFree returns the all-time-low free-block count (QF::getPoolMin).
func (p *Pool) MinFree() int { return p.minFree }

// Total returns the total block count this pool manages.
func (p *Pool) Total() int { return p.total }

// get pops a free block if margin allows. Caller holds the critical
// section. Returns nil if margin is not satisfied.
func (p *Pool) get(margin uint) *qevt.Envelope {
	if margin != NoMargin && p.free <= int(margin) {
		return nil
	}
	if p.free == 0 {
		return nil
	}
	e := p.freeHead
	p.freeHead = e.Next
	e.Next = nil
	p.free--
	if p.free < p.minFree {
		p.minFree = p.free
	}
	return e
}

// put pushes a block back onto the free list. Caller holds the critical
// section.
func (p *Pool) put(e *qevt.Envelope) {
	e.Payload = nil
	e.Next = p.freeHead
	p.freeHead = e
	p.free++
}

// Table registers pools in strictly ascending block-size order and
// dispatches allocation/recycling to them (QF::newEvt_/QF::gc).
type Table struct {
	cs    *critsec.Section
	pools []*Pool
}

// NewTable returns an empty pool table bound to cs, the framework's shared
// critical section.
func NewTable(cs *critsec.Section) *Table {
	return &Table{cs: cs}
}

// Register adds a pool. Registration must happen at startup, strictly in
// ascending BlockSize order; duplicates or out-of-order registration is a
// contract violation and panics (the core's fatal-assertion funnel).
func (t *Table) Register(p *Pool) {
	if len(t.pools) > 0 {
		last := t.pools[len(t.pools)-1].blockSize
		if p.blockSize <= last {
			panic(fmt.Sprintf("mpool: pool registered out of order or duplicate size: %d after %d", p.blockSize, last))
		}
	}
	t.pools = append(t.pools, p)
}

// poolIndexFor returns the index (0-based) of the lowest-indexed pool
// whose block fits size, or -1 if none fits.
func (t *Table) poolIndexFor(size int) int {
	for i, p := range t.pools {
		if p.blockSize >= size {
			return i
		}
	}
	return -1
}

// New allocates and initializes an event of the given signal from the
// lowest-indexed pool whose block size fits size.
//
// If margin is NoMargin and no block is free, this is a fatal leak and
// New panics. Otherwise New returns nil when the margin is not satisfied,
// and the caller decides whether to drop or retry.
func (t *Table) New(size int, margin uint, sig qevt.Signal, payload any) *qevt.Envelope {
	t.cs.Enter()
	idx := t.poolIndexFor(size)
	if idx < 0 {
		t.cs.Exit()
		panic(fmt.Sprintf("mpool: no pool registered for size %d", size))
	}
	p := t.pools[idx]
	e := p.get(margin)
	t.cs.Exit()

	if e == nil {
		if margin == NoMargin {
			panic(fmt.Sprintf("mpool: pool %d exhausted with NoMargin (event leak)", idx))
		}
		return nil
	}
	e.Sig = sig
	e.PoolID = uint8(idx + 1)
	e.RefCtr = 0
	e.Payload = payload
	return e
}

// GC recycles a dynamic event. It is a no-op for static events (PoolID 0).
// Inside the critical section: if RefCtr > 1 it is decremented; if RefCtr
// == 1 the block returns to its pool's free list.
func (t *Table) GC(e *qevt.Envelope) {
	if e == nil || e.IsStatic() {
		return
	}
	t.cs.Enter()
	defer t.cs.Exit()
	if e.RefCtr > 1 {
		e.RefCtr--
		return
	}
	idx := int(e.PoolID) - 1
	if idx < 0 || idx >= len(t.pools) {
		panic(fmt.Sprintf("mpool: event has invalid pool id %d", e.PoolID))
	}
	t.pools[idx].put(e)
}

// NewRef increments an event's reference count. Static events are
// unaffected.
func (t *Table) NewRef(e *qevt.Envelope) {
	if e == nil || e.IsStatic() {
		return
	}
	t.cs.Enter()
	e.RefCtr++
	t.cs.Exit()
}

// DeleteRef is NewRef's inverse: it calls GC.
func (t *Table) DeleteRef(e *qevt.Envelope) {
	t.GC(e)
}

// PoolMinFree returns pool poolID's (1-based) minimum-free watermark.
func (t *Table) PoolMinFree(poolID int) int {
	t.cs.Enter()
	defer t.cs.Exit()
	return t.pools[poolID-1].minFree
}
