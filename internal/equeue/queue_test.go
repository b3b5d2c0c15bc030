package equeue

import (
	"testing"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSignaler struct{ n int }

func (c *countingSignaler) SignalReady() { c.n++ }

func mkEvent(sig qevt.Signal) *qevt.Envelope {
	return &qevt.Envelope{Event: qevt.Event{Sig: sig}}
}

func TestFIFOOrdering(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	sig := &countingSignaler{}
	q := New(4, tbl, sig, cs)

	events := []*qevt.Envelope{mkEvent(10), mkEvent(11), mkEvent(12), mkEvent(13), mkEvent(14)}
	for _, e := range events {
		require.True(t, q.PostFIFO(e, 0))
	}

	for _, want := range events {
		got := q.Get()
		require.NotNil(t, got)
		assert.Equal(t, want, got)
	}
	assert.Nil(t, q.Get())
	assert.True(t, q.Empty())
}

func TestLIFOOverride(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	q := New(4, tbl, nil, cs)

	e1, e2, e3 := mkEvent(1), mkEvent(2), mkEvent(3)
	require.True(t, q.PostFIFO(e1, 0))
	q.PostLIFO(e2)
	require.True(t, q.PostFIFO(e3, 0))

	assert.Same(t, e2, q.Get())
	assert.Same(t, e1, q.Get())
	assert.Same(t, e3, q.Get())
}

func TestMarginRejectsAndGCs(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	pool := mpool.NewPool(8, 4)
	tbl.Register(pool)
	q := New(2, tbl, nil, cs) // nFree starts at 3

	before := pool.Free()
	e := tbl.New(8, 0, qevt.UserSig, nil)
	ok := q.PostFIFO(e, 3) // need nFree > 3, but nFree == 3
	assert.False(t, ok)
	assert.Equal(t, before, pool.Free(), "gc'd event must have returned to its pool")
}

func TestSignalOnlyOnEmptyToNonEmptyTransition(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	sig := &countingSignaler{}
	q := New(4, tbl, sig, cs)

	require.True(t, q.PostFIFO(mkEvent(1), 0))
	require.True(t, q.PostFIFO(mkEvent(2), 0))
	assert.Equal(t, 1, sig.n)

	q.Get()
	require.True(t, q.PostFIFO(mkEvent(3), 0))
	assert.Equal(t, 1, sig.n, "queue was not empty, should not re-signal")

	q.Get()
	q.Get()
	require.True(t, q.PostFIFO(mkEvent(4), 0))
	assert.Equal(t, 2, sig.n)
}

func TestNoMarginOverflowPanics(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	q := New(1, tbl, nil, cs)

	require.True(t, q.PostFIFO(mkEvent(1), 0))
	require.True(t, q.PostFIFO(mkEvent(2), 0))
	assert.Panics(t, func() {
		q.PostFIFO(mkEvent(3), NoMargin)
	})
}

func TestWrapAroundRing(t *testing.T) {
	cs := critsec.New()
	tbl := mpool.NewTable(cs)
	q := New(2, tbl, nil, cs)

	// one event stays pending, so every round's post lands in the ring and
	// head/tail both wrap around the two ring slots.
	prev := mkEvent(99)
	require.True(t, q.PostFIFO(prev, 0))
	for round := 0; round < 5; round++ {
		e := mkEvent(qevt.Signal(100 + round))
		require.True(t, q.PostFIFO(e, 0))
		got := q.Get()
		assert.Same(t, prev, got)
		prev = e
	}
}
