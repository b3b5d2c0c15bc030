// Package sched implements the cooperative QV scheduler core (C9): the
// ready-set-driven run loop and the scheduler lock with priority ceiling.
//
// Grounded on QP::QF::run and the ready-set handling in qv.cpp. The QK/QXK
// preemptive variants described in the framework's design notes are out of
// scope for the core's Go port; this is the cooperative single-stack model.
package sched

import (
	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/mpool"
)

// IdleHook is invoked when no active object is ready. It must be prepared
// to return control once an ISR or another thread makes an AO ready again;
// on bare metal it is also where interrupts are re-enabled and the CPU may
// enter a low-power wait. The cooperative loop calls it with no lock held.
type IdleHook func()

// Scheduler runs the QV cooperative event loop over a Registry: with every
// iteration it finds the highest-priority ready active object, dequeues one
// event, and dispatches it to completion before looking again.
type Scheduler struct {
	cs      *critsec.Section
	pools   *mpool.Table
	reg     *active.Registry
	idle    IdleHook
	ceiling int
	stopped bool
}

// New returns a scheduler driving reg, gc'ing consumed events through
// pools. idle is called whenever the ready set is empty; a nil idle hook
// means Run busy-loops.
func New(cs *critsec.Section, pools *mpool.Table, reg *active.Registry, idle IdleHook) *Scheduler {
	return &Scheduler{cs: cs, pools: pools, reg: reg, idle: idle}
}

// Run executes the cooperative event loop until Stop is called. Each
// iteration performs one run-to-completion step on the highest-priority
// ready active object whose priority exceeds the current lock ceiling.
func (s *Scheduler) Run() {
	s.stopped = false
	for !s.stopped {
		p := s.nextReady()
		if p == 0 {
			if s.idle != nil {
				s.idle()
			}
			continue
		}
		h := s.reg.At(p)
		if h == nil {
			s.reg.ReadyRemove(p)
			continue
		}
		ranOne := h.Step(s.pools)
		if !ranOne || h.QueueEmpty() {
			s.reg.ReadyRemove(p)
		}
	}
}

// Stop breaks out of Run after its current iteration.
func (s *Scheduler) Stop() { s.stopped = true }

// SetIdle replaces the idle hook invoked when the ready set is empty.
func (s *Scheduler) SetIdle(idle IdleHook) { s.idle = idle }

// nextReady returns the highest ready priority above the lock ceiling, or 0.
func (s *Scheduler) nextReady() int {
	p := s.reg.ReadyFindMax()
	if p <= s.ceiling {
		return 0
	}
	return p
}

// Lock raises the scheduler's lock ceiling to ceiling, returning the
// previous ceiling so the caller can restore it with Unlock. While locked,
// no active object at or below ceiling is scheduled, even if ready —
// used to make publish's multicast atomic with respect to its subscribers.
func (s *Scheduler) Lock(ceiling int) int {
	prev := s.ceiling
	if ceiling > prev {
		s.ceiling = ceiling
	}
	return prev
}

// Unlock restores a ceiling previously returned by Lock.
func (s *Scheduler) Unlock(prev int) {
	s.ceiling = prev
}
