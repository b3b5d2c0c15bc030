// Package hsm implements the hierarchical state-machine event processor
// (C5): state-handler dispatch, the hierarchical transition algorithm with
// LCA search, and entry/exit/initial-transition orchestration.
//
// Ported line-for-line in control flow from QP::QHsm (qep_hsm.cpp). The
// engine is generic over the owner type T so that, per the framework's
// design (an active object owns its HSM; a handler receives the owner
// directly, with no inheritance chain), a Handler[T] is a plain function of
// the owning active object and the dispatched event — not a method on the
// HSM itself.
//
// The original C++ engine has handlers communicate their parent/target to
// the caller through a shared "temp" scratch field as a side effect of
// being invoked with the internal EMPTY probe signal. Go handlers instead
// return that information directly in Result.target; HSM.trig folds it
// back into the temp field so the rest of the algorithm — ported
// statement-for-statement — reads exactly like the original.
package hsm

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/kestrel-systems/rtef/internal/qevt"
)

// MaxNestDepth bounds how deep the state hierarchy may nest. The
// transition algorithm asserts against it; it is not a soft limit.
const MaxNestDepth = 6

// Kind tags a Handler's outcome.
type Kind int

const (
	// Handled means the event was consumed; no transition.
	Handled Kind = iota
	// Ignored means the handler (usually Top) deliberately discards the event.
	Ignored
	// Unhandled means the handler declines the event (e.g. a failed guard)
	// without naming its superstate; the engine probes for it separately.
	Unhandled
	// Super names this state's parent handler.
	Super
	// Transition names the target of a regular transition.
	Transition
	// TransitionHistory names a recorded history pseudostate as the target.
	TransitionHistory
)

// Result is a handler's tagged outcome. Construct with the package-level
// helpers (HandledR, IgnoredR, UnhandledR, SuperOf, Tran, TranHist).
type Result[T any] struct {
	kind   Kind
	target Handler[T]
}

// Handler is a state: a pure dispatcher keyed on the event's signal. It
// receives the owning active object directly (composition, not
// inheritance) and the dispatched event (which, for the four reserved
// signals, carries no meaningful payload).
type Handler[T any] func(owner T, e *qevt.Envelope) Result[T]

func HandledR[T any]() Result[T]   { return Result[T]{kind: Handled} }
func IgnoredR[T any]() Result[T]   { return Result[T]{kind: Ignored} }
func UnhandledR[T any]() Result[T] { return Result[T]{kind: Unhandled} }

// SuperOf returns a Result announcing that the state's parent is parent.
// Every handler must return this (rather than Unhandled) for any signal it
// does not explicitly recognize, naming its real parent — this is the Go
// equivalent of the original's "default: temp = parent; return Super;".
func SuperOf[T any](parent Handler[T]) Result[T] {
	return Result[T]{kind: Super, target: parent}
}

// Tran returns a Result announcing a regular transition to target.
func Tran[T any](target Handler[T]) Result[T] {
	return Result[T]{kind: Transition, target: target}
}

// TranHist returns a Result announcing a transition to the history
// pseudostate target (the caller is responsible for having resolved
// target to the recorded child via a history manager).
func TranHist[T any](target Handler[T]) Result[T] {
	return Result[T]{kind: TransitionHistory, target: target}
}

// Top is the ultimate root of every state hierarchy. It ignores all
// events and has no superstate.
func Top[T any](owner T, e *qevt.Envelope) Result[T] {
	return IgnoredR[T]()
}

// HSM is a hierarchical state machine instance: a handler slot pair,
// {current, temp}. Outside of Dispatch/Init, current == temp (the stable
// configuration invariant).
type HSM[T any] struct {
	owner   T
	current Handler[T]
	temp    Handler[T]
}

// New returns an HSM bound to owner, with its top-most initial transition
// set to initial. Call Init exactly once before the first Dispatch.
func New[T any](owner T, initial Handler[T]) *HSM[T] {
	return &HSM[T]{owner: owner, current: Top[T], temp: initial}
}

// Current returns the machine's stable active leaf state.
func (h *HSM[T]) Current() Handler[T] {
	return h.current
}

// trig invokes s with one of the four reserved signals. When the result
// names a parent/target (Super, Transition, TransitionHistory), temp is
// updated to it, mirroring the original's side-channel so the rest of the
// algorithm can read h.temp exactly where the C original reads m_temp.fun.
func (h *HSM[T]) trig(s Handler[T], sig qevt.Signal) Result[T] {
	r := s(h.owner, qevt.Reserved(sig))
	switch r.kind {
	case Super, Transition, TransitionHistory:
		h.temp = r.target
	}
	return r
}

func (h *HSM[T]) enter(s Handler[T]) { s(h.owner, qevt.Reserved(qevt.Entry)) }

// exit triggers the EXIT signal on s and returns the control-flow kind the
// caller needs (Handled vs. Super); like trig, it folds a Super target
// into h.temp.
func (h *HSM[T]) exit(s Handler[T]) Kind {
	return h.trig(s, qevt.Exit).kind
}

// climb moves cur to its superstate, whether EXIT was explicitly handled
// (requiring a separate EMPTY probe to discover the parent) or fell
// through to the default branch (which already named the parent via
// Super, already folded into h.temp by trig).
func (h *HSM[T]) climb(cur Handler[T]) Handler[T] {
	if h.exit(cur) != Super {
		h.trig(cur, qevt.Empty)
	}
	return h.temp
}

// drillInit performs the "drill down via INIT" loop shared by Init and
// Dispatch. r is the result of whatever INIT-like call the caller already
// made on t (the top-most initial transition for Init, or the first INIT
// probe on the transition's target for Dispatch); drillInit loops for as
// long as that result is a Transition: walk up from its target to t via
// EMPTY probes collecting the entry path, enter it outermost-first, set
// t to the new current state, and probe INIT on it again.
func (h *HSM[T]) drillInit(t Handler[T], r Result[T]) Handler[T] {
	for r.kind == Transition {
		var path [MaxNestDepth]Handler[T]
		ip := 0
		path[0] = h.temp // == r.target, already folded in by trig/direct call
		h.trig(h.temp, qevt.Empty)
		for !sameHandler(h.temp, t) {
			ip++
			if ip >= MaxNestDepth {
				panic("hsm: entry path exceeds MaxNestDepth")
			}
			path[ip] = h.temp
			h.trig(h.temp, qevt.Empty)
		}
		h.temp = path[0]

		for ; ip >= 0; ip-- {
			h.enter(path[ip])
		}
		t = path[0]

		r = h.trig(t, qevt.Init)
	}
	return t
}

// Restore forcibly sets the machine's stable configuration to s without
// running any entry or exit actions. It exists for snapshot restoration
// only: the caller is responsible for s being a legitimate leaf state
// reached the same way Init or Dispatch would have left it, and for not
// calling this while a dispatch is in progress.
func (h *HSM[T]) Restore(s Handler[T]) {
	h.current = s
	h.temp = s
}

// Init executes the top-most initial transition, then drills down through
// successive INIT transitions until one returns a non-transition result.
// Must be called exactly once, before any Dispatch.
func (h *HSM[T]) Init() {
	t := h.current

	res := h.temp(h.owner, &qevt.Envelope{})
	if res.kind != Transition {
		panic("hsm: top-most initial transition was not taken")
	}
	h.temp = res.target

	t = h.drillInit(t, res)
	h.current = t
	h.temp = t
}

// Dispatch executes one run-to-completion step: walk up the hierarchy
// until a level handles, transitions, or ignores the event; on a
// transition, exit up to the handling level, run the LCA search, enter
// down to the target, and drill down via INIT.
func (h *HSM[T]) Dispatch(e *qevt.Envelope) {
	t := h.current
	if t == nil || !sameHandler(t, h.temp) {
		panic("hsm: Dispatch called with unstable or uninitialized configuration")
	}

	var s Handler[T]
	var r Result[T]
	for {
		s = h.temp
		r = s(h.owner, e)
		if r.kind == Unhandled {
			r = h.trig(s, qevt.Empty) // find s's superstate
		} else if r.kind == Super {
			h.temp = r.target
		}
		if r.kind != Super {
			break
		}
	}

	switch r.kind {
	case Transition, TransitionHistory:
		var path [MaxNestDepth]Handler[T]
		path[0] = r.target // target of the transition
		path[1] = t
		path[2] = s
		h.temp = path[0]

		for cur := t; !sameHandler(cur, s); cur = h.climb(cur) {
		}
		t = s

		ip := h.hsmTran(&path)

		for ; ip >= 0; ip-- {
			h.enter(path[ip])
		}
		t = path[0]
		h.temp = t

		initRes := h.trig(t, qevt.Init)
		t = h.drillInit(t, initRes)
	case Handled, Ignored:
		// internal transition or no-op; t unchanged
	}

	h.current = t
	h.temp = t
}

// hsmTran computes the entry path from the LCA of path[2] (source) and
// path[0] (target) down to the target, performing the necessary exits
// along the way. It returns the index of the outermost state still to be
// entered; callers walk path[ip] down to path[0].
//
// This mirrors QHsm::hsm_tran's seven-case ladder exactly, including the
// deliberate shortcuts in cases (a)-(d) that must not exit/enter more than
// the original.
func (h *HSM[T]) hsmTran(path *[MaxNestDepth]Handler[T]) int {
	t := path[0]
	s := path[2]

	// (a) source == target: self-transition.
	if sameHandler(s, t) {
		h.exit(s)
		return 0
	}

	h.trig(t, qevt.Empty)
	t = h.temp // target's superstate

	// (b) source == target's superstate.
	if sameHandler(s, t) {
		return 0
	}

	h.trig(s, qevt.Empty) // h.temp now holds source's superstate

	// (c) source's superstate == target's superstate.
	if sameHandler(h.temp, t) {
		h.exit(s)
		return 0
	}

	// (d) source's superstate == target.
	if sameHandler(h.temp, path[0]) {
		h.exit(s)
		return -1
	}

	// (e) rest of source == target->super->super...: walk up from
	// target's superstate, storing the entry path, looking for the source.
	ip := 1
	path[1] = t
	t = h.temp // source's superstate

	r := h.trig(path[1], qevt.Empty)
	lcaFound := false
	for r.kind == Super {
		ip++
		path[ip] = h.temp
		if sameHandler(h.temp, s) {
			lcaFound = true
			if ip >= MaxNestDepth {
				panic("hsm: entry path exceeds MaxNestDepth")
			}
			ip--
			break
		}
		r = h.trig(h.temp, qevt.Empty)
	}

	if lcaFound {
		return ip
	}
	if ip >= MaxNestDepth {
		panic("hsm: entry path exceeds MaxNestDepth")
	}

	h.exit(s)

	// (f) rest of source->super == target->super->super...
	for iq := ip; iq >= 0; iq-- {
		if sameHandler(t, path[iq]) {
			return iq - 1
		}
	}

	// (g) general case: walk up from source->super, exiting each level,
	// comparing against every stored target ancestor, until a match.
	for {
		t = h.climb(t)
		for iq := ip; iq >= 0; iq-- {
			if sameHandler(t, path[iq]) {
				return iq - 1
			}
		}
	}
}

// IsIn reports whether the HSM is in state s, or s is an ancestor of the
// currently active state.
func (h *HSM[T]) IsIn(s Handler[T]) bool {
	h.temp = h.current
	for {
		if sameHandler(h.temp, s) {
			h.temp = h.current
			return true
		}
		r := h.trig(h.temp, qevt.Empty)
		if r.kind == Ignored {
			h.temp = h.current
			return false
		}
	}
}

// ChildState finds the child of parent that is an ancestor of the
// currently active state. Used to implement shallow-history transitions.
// Panics if parent is not actually an ancestor of the current state.
func (h *HSM[T]) ChildState(parent Handler[T]) Handler[T] {
	child := h.current
	h.temp = h.current
	found := false
	for {
		if sameHandler(h.temp, parent) {
			found = true
			break
		}
		child = h.temp
		r := h.trig(h.temp, qevt.Empty)
		if r.kind == Ignored {
			break
		}
	}
	h.temp = h.current
	if !found {
		panic(fmt.Sprintf("hsm: ChildState: parent is not an ancestor of the current state"))
	}
	return child
}

// StateName returns the fully qualified function name backing handler s,
// e.g. "main.ledOn" for cmd/blinky's ledOn handler — used by
// tracing and persistence, where a state needs a stable, human-readable
// identity but the handler itself is just a function value with no such
// identity at runtime.
func StateName[T any](s Handler[T]) string {
	if s == nil {
		return ""
	}
	if fn := runtime.FuncForPC(reflect.ValueOf(s).Pointer()); fn != nil {
		return fn.Name()
	}
	return ""
}

// sameHandler compares two Handler[T] values by the identity of the state
// function they wrap. Go forbids == on func values directly; state
// handlers must be distinct top-level functions or methods (never ad hoc
// closures sharing a literal) so their code pointers are a valid identity,
// exactly as a function pointer is in the original.
func sameHandler[T any](a, b Handler[T]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
