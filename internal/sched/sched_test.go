package sched

import (
	"testing"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/hsm"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n int
}

func counterInitial(o *counter, e *qevt.Envelope) hsm.Result[*counter] {
	return hsm.Tran(counterRunning)
}

func counterRunning(o *counter, e *qevt.Envelope) hsm.Result[*counter] {
	switch e.Sig {
	case qevt.Entry, qevt.Exit:
		return hsm.HandledR[*counter]()
	case qevt.Empty, qevt.Init:
		return hsm.SuperOf[*counter](hsm.Top[*counter])
	default:
		o.n++
		return hsm.HandledR[*counter]()
	}
}

func newCounter(cs *critsec.Section, pools *mpool.Table) (*counter, *active.Object[*counter]) {
	o := &counter{}
	return o, active.New[*counter](o, counterInitial, 4, pools, cs)
}

func TestRunDrainsQueueThenStops(t *testing.T) {
	cs := critsec.New()
	pools := mpool.NewTable(cs)
	reg := active.NewRegistry(cs, qevt.Signal(100))
	owner, obj := newCounter(cs, pools)
	active.Start(reg, obj, 1)

	for i := 0; i < 3; i++ {
		require.True(t, obj.Post(&qevt.Envelope{Event: qevt.Event{Sig: qevt.UserSig}}, 0))
	}

	// the idle hook only fires once the queue is drained; stop there.
	var sch *Scheduler
	sch = New(cs, pools, reg, func() { sch.Stop() })
	sch.Run()

	assert.Equal(t, 3, owner.n)
}

func TestLockPreventsLowerOrEqualPriorityFromRunning(t *testing.T) {
	cs := critsec.New()
	pools := mpool.NewTable(cs)
	reg := active.NewRegistry(cs, qevt.Signal(100))

	lowOwner, lowObj := newCounter(cs, pools)
	active.Start(reg, lowObj, 2)
	highOwner, highObj := newCounter(cs, pools)
	active.Start(reg, highObj, 5)

	require.True(t, lowObj.Post(&qevt.Envelope{Event: qevt.Event{Sig: qevt.UserSig}}, 0))
	require.True(t, highObj.Post(&qevt.Envelope{Event: qevt.Event{Sig: qevt.UserSig}}, 0))

	sch := New(cs, pools, reg, nil)
	prev := sch.Lock(3) // locks out priority <= 3

	// the low-priority AO must not run while locked...
	assert.Equal(t, 5, sch.nextReady())
	h := reg.At(5)
	h.Step(pools)
	reg.ReadyRemove(5)
	assert.Equal(t, 0, sch.nextReady(), "priority 2 is below the ceiling and must stay blocked")

	sch.Unlock(prev)
	assert.Equal(t, 2, sch.nextReady())
	h2 := reg.At(2)
	h2.Step(pools)

	assert.Equal(t, 1, highOwner.n)
	assert.Equal(t, 1, lowOwner.n)
}
