// Package active implements the active-object kernel (C6): binding an HSM
// (C5) to an event queue (C4), a unique priority, and a global
// priority-indexed registry (C9's bookkeeping half; the run loop itself
// lives in package sched).
//
// Grounded on QP::QActive::start (qf_act.cpp's add_/remove_) and the
// subscribe/unsubscribe/unsubscribeAll trio (qf_ps.cpp), re-expressed
// without the AO-as-base-class inheritance the original uses: here an
// active object composes its HSM rather than extending it, so Object is
// generic over the owner type the HSM's handlers operate on.
package active

import (
	"fmt"

	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/equeue"
	"github.com/kestrel-systems/rtef/internal/hsm"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/prioset"
	"github.com/kestrel-systems/rtef/internal/qevt"
)

// Handle is the priority-indexed registry's non-generic view of an active
// object: everything the scheduler's run loop and the publish multicast
// need to do without knowing the owner type T.
type Handle interface {
	Prio() int
	QueueEmpty() bool
	// Step runs one run-to-completion dispatch on the next queued event (if
	// any) and gc's it afterward. Returns false if the queue was empty.
	Step(pools *mpool.Table) bool
	Post(e *qevt.Envelope, margin uint) bool
	PostLIFO(e *qevt.Envelope)
}

// Object is an active object: an HSM, its event queue, and the priority it
// was registered under.
type Object[T any] struct {
	hsm   *hsm.HSM[T]
	queue *equeue.Queue
	prio  int
	reg   *Registry
}

// New constructs an active object bound to owner's HSM, with initial as the
// top-most initial transition target. The object is not schedulable until
// Start registers it.
func New[T any](owner T, initial hsm.Handler[T], queueCap int, pools *mpool.Table, cs *critsec.Section) *Object[T] {
	o := &Object[T]{hsm: hsm.New(owner, initial)}
	o.queue = equeue.New(queueCap, pools, readySignaler[T]{o}, cs)
	return o
}

// Start registers o in reg at prio (which must be vacant), takes its
// top-most initial transition, and makes it eligible for scheduling.
func Start[T any](reg *Registry, o *Object[T], prio int) {
	if prio <= 0 || prio > prioset.MaxActive {
		panic(fmt.Sprintf("active: priority %d out of range", prio))
	}
	reg.cs.Enter()
	if reg.table[prio] != nil {
		reg.cs.Exit()
		panic(fmt.Sprintf("active: priority %d already registered", prio))
	}
	o.prio = prio
	o.reg = reg
	reg.table[prio] = o
	reg.cs.Exit()

	o.hsm.Init()
}

// Stop removes o from its registry, freeing the priority level. Memory is
// not released; per the framework's contract a stopped AO is never
// restarted.
func Stop[T any](o *Object[T]) {
	reg := o.reg
	reg.cs.Enter()
	defer reg.cs.Exit()
	reg.table[o.prio] = nil
	reg.ready.Remove(o.prio)
}

// HSM returns the object's state machine, for IsIn/ChildState queries.
func (o *Object[T]) HSM() *hsm.HSM[T] { return o.hsm }

// Prio returns the priority this object was started under (0 if not yet
// started).
func (o *Object[T]) Prio() int { return o.prio }

// Post enqueues e FIFO with the given margin. See equeue.Queue.PostFIFO.
func (o *Object[T]) Post(e *qevt.Envelope, margin uint) bool {
	return o.queue.PostFIFO(e, margin)
}

// PostLIFO enqueues e at the front of the queue. See equeue.Queue.PostLIFO.
func (o *Object[T]) PostLIFO(e *qevt.Envelope) { o.queue.PostLIFO(e) }

func (o *Object[T]) QueueEmpty() bool { return o.queue.Empty() }

// Step runs one run-to-completion dispatch on the next queued event (if
// any) and gc's it afterward. Returns false if the queue was empty. Used
// by the scheduler core; application code normally has no reason to call
// it directly.
func (o *Object[T]) Step(pools *mpool.Table) bool {
	e := o.queue.Get()
	if e == nil {
		return false
	}
	o.hsm.Dispatch(e)
	pools.GC(e)
	return true
}

// Subscribe registers interest in sig with the framework's publish-
// subscribe table (C8). o must already be started.
func (o *Object[T]) Subscribe(sig qevt.Signal) {
	if o.reg == nil {
		panic("active: Subscribe called before Start")
	}
	o.reg.Subscribers.Subscribe(sig, o.prio)
}

// Unsubscribe withdraws interest in sig.
func (o *Object[T]) Unsubscribe(sig qevt.Signal) { o.reg.Subscribers.Unsubscribe(sig, o.prio) }

// UnsubscribeAll withdraws interest in every signal this object subscribed to.
func (o *Object[T]) UnsubscribeAll() { o.reg.Subscribers.UnsubscribeAll(o.prio) }

// readySignaler adapts an *Object[T] to equeue.Signaler: marking the
// object's priority bit in its registry's ready set whenever the queue
// transitions from empty to non-empty, mirroring QACTIVE_EQUEUE_SIGNAL_.
type readySignaler[T any] struct{ o *Object[T] }

func (s readySignaler[T]) SignalReady() {
	if s.o.reg != nil {
		s.o.reg.cs.Enter()
		s.o.reg.ready.Insert(s.o.prio)
		s.o.reg.cs.Exit()
	}
}

// Registry is the global priority-indexed active-object table (QF::active_)
// plus the subscriber table (C8) and the ready set the scheduler core
// consumes. One Registry is constructed per running framework instance.
type Registry struct {
	cs          *critsec.Section
	table       [prioset.MaxActive + 1]Handle
	ready       prioset.Set
	Subscribers *Subscribers
}

// NewRegistry returns an empty registry accepting subscriptions for signals
// in [userSig, maxSignal).
func NewRegistry(cs *critsec.Section, maxSignal qevt.Signal) *Registry {
	return &Registry{cs: cs, Subscribers: NewSubscribers(cs, maxSignal)}
}

// At returns the active object registered at prio, or nil.
func (r *Registry) At(prio int) Handle { return r.table[prio] }

// ReadyNotEmpty reports whether any active object is ready to run.
func (r *Registry) ReadyNotEmpty() bool {
	r.cs.Enter()
	defer r.cs.Exit()
	return r.ready.NotEmpty()
}

// ReadyFindMax returns the highest ready priority, or 0 if none.
func (r *Registry) ReadyFindMax() int {
	r.cs.Enter()
	defer r.cs.Exit()
	return r.ready.FindMax()
}

// ReadyRemove clears prio's ready bit — called once its queue drains.
func (r *Registry) ReadyRemove(prio int) {
	r.cs.Enter()
	defer r.cs.Exit()
	r.ready.Remove(prio)
}

// Subscribers is the signal -> subscriber-priority-set table (C8), shared by
// every active object's Subscribe/Unsubscribe call and by publish's
// multicast loop.
type Subscribers struct {
	cs   *critsec.Section
	sets map[qevt.Signal]*prioset.Set
	max  qevt.Signal
}

// NewSubscribers returns an empty table accepting signals in
// [userSig, maxSignal).
func NewSubscribers(cs *critsec.Section, maxSignal qevt.Signal) *Subscribers {
	return &Subscribers{cs: cs, sets: make(map[qevt.Signal]*prioset.Set), max: maxSignal}
}

func (s *Subscribers) setFor(sig qevt.Signal) *prioset.Set {
	set, ok := s.sets[sig]
	if !ok {
		set = &prioset.Set{}
		s.sets[sig] = set
	}
	return set
}

// Subscribe sets prio's bit in sig's subscriber set. sig must be a user
// signal below the configured maximum.
func (s *Subscribers) Subscribe(sig qevt.Signal, prio int) {
	if sig >= s.max {
		panic(fmt.Sprintf("active: signal %d out of subscriber range", sig))
	}
	s.cs.Enter()
	defer s.cs.Exit()
	s.setFor(sig).Insert(prio)
}

// Unsubscribe clears prio's bit in sig's subscriber set.
func (s *Subscribers) Unsubscribe(sig qevt.Signal, prio int) {
	s.cs.Enter()
	defer s.cs.Exit()
	s.setFor(sig).Remove(prio)
}

// UnsubscribeAll clears prio's bit across every signal.
func (s *Subscribers) UnsubscribeAll(prio int) {
	for sig := range s.sets {
		s.cs.Enter()
		s.sets[sig].Remove(prio)
		s.cs.Exit()
	}
}

// Snapshot copies the subscriber set for sig under the critical section, for
// publish's multicast loop to iterate without holding the lock.
func (s *Subscribers) Snapshot(sig qevt.Signal) prioset.Set {
	s.cs.Enter()
	defer s.cs.Exit()
	if set, ok := s.sets[sig]; ok {
		return *set
	}
	return prioset.Set{}
}
