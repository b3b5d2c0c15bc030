// Package pubsub implements the application-facing half of the
// publish-subscribe service (C8): multicasting a published event to every
// active object that has subscribed to its signal, with the multicast made
// atomic with respect to its own subscribers via the scheduler lock.
//
// Grounded on QP::QF::publish_ (qf_ps.cpp): bump a keep-alive reference
// before the critical section is released, snapshot the subscriber set,
// lock the scheduler up to the highest subscriber priority, post to each
// subscriber in descending priority order, unlock, then gc the keep-alive
// reference.
package pubsub

import (
	"fmt"

	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/kestrel-systems/rtef/internal/sched"
)

// Publisher ties together the active-object registry, the event pool
// table, and the scheduler needed to multicast published events.
type Publisher struct {
	reg   *active.Registry
	pools *mpool.Table
	sched *sched.Scheduler
}

// New returns a Publisher over reg, gc'ing through pools and locking sched
// during multicast.
func New(reg *active.Registry, pools *mpool.Table, scheduler *sched.Scheduler) *Publisher {
	return &Publisher{reg: reg, pools: pools, sched: scheduler}
}

// Publish multicasts e to every active object subscribed to e.Sig.
//
// Net effect for a dynamic event: every subscriber ends up holding exactly
// one reference, and the event is freed once all of them have consumed
// it — even if there are no subscribers at all, in which case the
// keep-alive reference alone drives it back to its pool immediately.
// Static events (e.g. a reused time-event envelope) are unaffected by the
// reference traffic: NewRef/gc are no-ops for them.
func (p *Publisher) Publish(e *qevt.Envelope) {
	p.pools.NewRef(e) // keep-alive reference held for the duration of multicast

	subs := p.reg.Subscribers.Snapshot(e.Sig)

	if subs.NotEmpty() {
		ceiling := subs.FindMax()
		prev := p.sched.Lock(ceiling)
		for {
			prio := subs.FindMax()
			if prio == 0 {
				break
			}
			h := p.reg.At(prio)
			if h == nil {
				panic(fmt.Sprintf("pubsub: subscriber priority %d is not registered", prio))
			}
			h.Post(e, 0)
			subs.Remove(prio)
		}
		p.sched.Unlock(prev)
	}

	p.pools.GC(e) // balances the keep-alive reference
}
