package timer

import (
	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/hsm"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
)

// TickerAO is a dedicated active object that decouples a periodic tick
// source (commonly an ISR) from the wheel's bookkeeping: instead of the
// tick source calling Table.Tick directly from interrupt context, it posts
// one tick event per call to this AO's queue and Table.Tick runs later, on
// the ticker's own run-to-completion step, at the ticker's configured
// priority. Ticks are not coalesced: each pending tick occupies its own
// queue slot, and a tick posted to a full queue is dropped. Table.Tick
// remains directly callable for callers that don't need this indirection.
type TickerAO struct {
	ao    *active.Object[*TickerAO]
	table *Table
}

func tickerInitial(t *TickerAO, e *qevt.Envelope) hsm.Result[*TickerAO] {
	return hsm.Tran(tickerRunning)
}

func tickerRunning(t *TickerAO, e *qevt.Envelope) hsm.Result[*TickerAO] {
	switch e.Sig {
	case qevt.Entry, qevt.Exit:
		return hsm.HandledR[*TickerAO]()
	case qevt.UserSig:
		t.table.Tick(e.Payload.(int), nil)
		return hsm.HandledR[*TickerAO]()
	}
	return hsm.SuperOf[*TickerAO](hsm.Top[*TickerAO])
}

// NewTickerAO returns a ticker bound to table, with an event queue sized
// queueCap (bounding how many ticks may be pending at once).
func NewTickerAO(cs *critsec.Section, pools *mpool.Table, table *Table, queueCap int) *TickerAO {
	t := &TickerAO{table: table}
	t.ao = active.New[*TickerAO](t, tickerInitial, queueCap, pools, cs)
	return t
}

// Start registers the ticker in reg at prio, matching active.Start.
func (t *TickerAO) Start(reg *active.Registry, prio int) {
	active.Start(reg, t.ao, prio)
}

// Object exposes the underlying active object, e.g. for Registry lookups.
func (t *TickerAO) Object() *active.Object[*TickerAO] { return t.ao }

// Tick posts a tick event for rate to the ticker's own queue rather
// than calling table.Tick(rate, ...) inline. Safe to call from an ISR.
func (t *TickerAO) Tick(rate int) {
	t.ao.Post(qevt.NewStatic(qevt.UserSig, rate), 0)
}
