// Package timer implements the time-event wheel (C7): up to MaxTickRate
// independent tick rates, each an intrusive singly-linked list of armed
// time events, decremented and delivered on every call to Tick.
//
// The source corpus's dedicated time-event source (qf_time.cpp) was not
// available to study directly; this is grounded on the spec's own
// description of the wheel (linked-list-under-critical-section,
// arm/rearm/disarm semantics) plus the intrusive-free-list and
// critical-section idioms shared by mpool.Pool and equeue.Queue.
package timer

import (
	"fmt"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/kestrel-systems/rtef/pubsub"
)

// MaxTickRate bounds the number of independent tick rates a Table can host.
const MaxTickRate = 15

// Event is a time event: an envelope that gets (re)posted on expiry,
// threaded into at most one wheel's linked list at a time.
type Event struct {
	cs   *critsec.Section
	next *Event

	linked      bool
	wasDisarmed bool

	ctr      uint32
	interval uint32

	env       *qevt.Envelope
	target    active.Handle     // nil for a broadcast time event
	publisher *pubsub.Publisher // used when target == nil
}

// New returns a disarmed time event that (re)posts sig, either directly to
// target or — if target is nil — via publisher's multicast, on every
// expiry. The envelope carrying sig is static and reused across firings.
func New(cs *critsec.Section, sig qevt.Signal, target active.Handle, publisher *pubsub.Publisher) *Event {
	if target == nil && publisher == nil {
		panic("timer: New requires either target or publisher")
	}
	return &Event{
		cs:        cs,
		env:       qevt.NewStatic(sig, nil),
		target:    target,
		publisher: publisher,
	}
}

func (e *Event) deliver() {
	if e.target != nil {
		e.target.Post(e.env, 0)
	} else {
		e.publisher.Publish(e.env)
	}
}

// Table owns one Wheel per tick rate.
type Table struct {
	cs     *critsec.Section
	wheels [MaxTickRate]*Event // head of the linked list for each rate
}

// NewTable returns an empty time-event table sharing the framework's
// critical section.
func NewTable(cs *critsec.Section) *Table {
	return &Table{cs: cs}
}

func (t *Table) checkRate(rate int) {
	if rate < 0 || rate >= MaxTickRate {
		panic(fmt.Sprintf("timer: tick rate %d out of range", rate))
	}
}

// Arm inserts e into rate's wheel with counter ctr (ticks to first expiry)
// and reload value interval (0 for one-shot). Arming an already-armed event
// is a contract violation — use Rearm to update it in place.
func (t *Table) Arm(rate int, e *Event, ctr, interval uint32) {
	t.checkRate(rate)
	e.cs.Enter()
	defer e.cs.Exit()
	if e.linked {
		panic("timer: Arm called on an already-armed time event")
	}
	e.ctr = ctr
	e.interval = interval
	e.wasDisarmed = false
	e.linked = true
	e.next = t.wheels[rate]
	t.wheels[rate] = e
}

// Rearm updates ctr and interval in place, arming e into rate's wheel if it
// was disarmed. Returns whether e was already armed.
func (t *Table) Rearm(rate int, e *Event, ctr, interval uint32) bool {
	t.checkRate(rate)
	e.cs.Enter()
	wasArmed := e.linked && !e.wasDisarmed
	e.ctr = ctr
	e.interval = interval
	e.wasDisarmed = false
	if !e.linked {
		e.linked = true
		e.next = t.wheels[rate]
		t.wheels[rate] = e
	}
	e.cs.Exit()
	return wasArmed
}

// Disarm idempotently and non-blockingly disarms e: safe to call from any
// context, including concurrently with Tick. Returns whether e was still
// armed at the time of the call. The actual unlink happens lazily, the
// next time Tick walks the wheel.
func (e *Event) Disarm() bool {
	e.cs.Enter()
	defer e.cs.Exit()
	if !e.linked || e.wasDisarmed {
		return false
	}
	e.ctr = 0
	e.wasDisarmed = true
	return true
}

// Tick walks rate's wheel once, decrementing every armed event's counter
// and delivering (posting or publishing) any that reach zero. sender is
// accepted for symmetry with the framework's tracing contract; the core
// does not otherwise use it.
func (t *Table) Tick(rate int, sender any) {
	t.checkRate(rate)
	_ = sender

	t.cs.Enter()
	prev := (*Event)(nil)
	cur := t.wheels[rate]
	var toDeliver []*Event

	for cur != nil {
		next := cur.next
		if cur.ctr == 0 {
			// already disarmed by another path (Disarm set ctr=0); unlink.
			if prev == nil {
				t.wheels[rate] = next
			} else {
				prev.next = next
			}
			cur.linked = false
			cur = next
			continue
		}

		cur.ctr--
		if cur.ctr == 0 {
			toDeliver = append(toDeliver, cur)
			if cur.interval != 0 {
				cur.ctr = cur.interval
				prev = cur
			} else {
				if prev == nil {
					t.wheels[rate] = next
				} else {
					prev.next = next
				}
				cur.linked = false
				cur.wasDisarmed = true
			}
		} else {
			prev = cur
		}
		cur = next
	}
	t.cs.Exit()

	for _, e := range toDeliver {
		e.deliver()
	}
}
