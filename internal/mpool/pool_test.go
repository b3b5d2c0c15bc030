package mpool

import (
	"testing"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	cs := critsec.New()
	tbl := NewTable(cs)
	tbl.Register(NewPool(16, 4))
	tbl.Register(NewPool(32, 4))
	tbl.Register(NewPool(64, 2))
	return tbl
}

func TestRegisterOutOfOrderPanics(t *testing.T) {
	cs := critsec.New()
	tbl := NewTable(cs)
	tbl.Register(NewPool(32, 2))
	assert.Panics(t, func() {
		tbl.Register(NewPool(16, 2))
	})
}

func TestAllocatesFromFirstFitPool(t *testing.T) {
	tbl := newTable(t)
	e := tbl.New(24, 0, qevt.UserSig, nil)
	require.NotNil(t, e)
	assert.EqualValues(t, 2, e.PoolID) // the 32-block pool
	assert.EqualValues(t, 0, e.RefCtr)
}

func TestNoMarginExhaustionPanics(t *testing.T) {
	tbl := newTable(t)
	for i := 0; i < 2; i++ {
		require.NotNil(t, tbl.New(64, NoMargin, qevt.UserSig, nil))
	}
	assert.Panics(t, func() {
		tbl.New(64, NoMargin, qevt.UserSig, nil)
	})
}

func TestMarginReturnsNilWithoutPanic(t *testing.T) {
	tbl := newTable(t)
	tbl.New(64, 0, qevt.UserSig, nil)
	tbl.New(64, 0, qevt.UserSig, nil) // the 64-block pool holds 2 blocks
	e := tbl.New(64, 0, qevt.UserSig, nil)
	assert.Nil(t, e)
}

func TestGCReturnsBlockToOriginPool(t *testing.T) {
	tbl := newTable(t)
	before := tbl.pools[1].Free()
	e := tbl.New(24, 0, qevt.UserSig, nil)
	assert.Equal(t, before-1, tbl.pools[1].Free())
	tbl.GC(e)
	assert.Equal(t, before, tbl.pools[1].Free())
}

func TestRefCountingDefersRecycle(t *testing.T) {
	tbl := newTable(t)
	before := tbl.pools[0].Free()
	e := tbl.New(16, 0, qevt.UserSig, nil)
	tbl.NewRef(e) // refCtr now 1 (post will also bump, simulate 2 holders)
	tbl.NewRef(e) // refCtr now 2

	tbl.GC(e)
	assert.Equal(t, before-1, tbl.pools[0].Free(), "still held by one more reference")

	tbl.GC(e)
	assert.Equal(t, before, tbl.pools[0].Free())
}

func TestGCIsNoOpForStaticEvents(t *testing.T) {
	tbl := newTable(t)
	static := qevt.NewStatic(qevt.UserSig, nil)
	assert.NotPanics(t, func() {
		tbl.GC(static)
	})
}

func TestMinFreeWatermark(t *testing.T) {
	tbl := newTable(t)
	e1 := tbl.New(16, 0, qevt.UserSig, nil)
	e2 := tbl.New(16, 0, qevt.UserSig, nil)
	assert.Equal(t, 2, tbl.PoolMinFree(1))
	tbl.GC(e1)
	tbl.GC(e2)
	assert.Equal(t, 2, tbl.PoolMinFree(1), "watermark does not recover on gc")
}
