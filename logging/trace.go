// Package logging wires the framework's tracing hook (spec.md's QSpy-style
// side channel) to structured logging: every core component that accepts a
// Tracer may report what it did, but the Tracer itself must never be able
// to influence dispatch, scheduling, or delivery — it only ever receives
// already-decided facts, after the fact.
//
// Grounded on the joeycumines/go-utilpkg sql/export package's use of
// logiface.Logger[logiface.Event] as a struct field (one generic logger
// type regardless of backend), backed here by zerolog through the izerolog
// adapter the way ilogrus backs logiface with logrus.
package logging

import (
	"io"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Tracer is the observe-only hook components thread through the framework:
// a thin, renamed view over logiface.Logger[logiface.Event] so call sites
// read in domain terms (Trace/Event/Fatal) without importing logiface
// themselves.
type Tracer = logiface.Logger[logiface.Event]

// New returns a Tracer writing structured, leveled records to w via
// zerolog, through the izerolog logiface backend.
func New(w io.Writer, level logiface.Level) *Tracer {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[logiface.Event](
		izerolog.WithZerolog(&zl),
		logiface.WithLevel[logiface.Event](level),
	)
}

// Discard returns a Tracer that drops every record, for callers (tests,
// embedded targets without a log sink) that want the tracing call sites
// exercised without any output.
func Discard() *Tracer {
	return logiface.New[logiface.Event](
		logiface.WithLevel[logiface.Event](logiface.LevelDisabled),
	)
}

// Dispatch reports one completed HSM dispatch: the signal handled, the
// state the machine was in beforehand, and whether a transition occurred.
// Called after Dispatch returns — it cannot affect the outcome.
func Dispatch(t *Tracer, owner string, sig uint32, fromState, toState string, transitioned bool) {
	if t == nil {
		return
	}
	t.Trace().
		Str(`owner`, owner).
		Uint64(`sig`, uint64(sig)).
		Str(`from`, fromState).
		Str(`to`, toState).
		Bool(`transitioned`, transitioned).
		Log(`dispatch`)
}

// Publish reports one publish_-style multicast: the signal published and
// how many subscribers it reached.
func Publish(t *Tracer, sig uint32, subscriberCount int) {
	if t == nil {
		return
	}
	t.Trace().
		Uint64(`sig`, uint64(sig)).
		Int(`subscribers`, subscriberCount).
		Log(`publish`)
}

// Post reports one event delivered directly to an active object's queue.
func Post(t *Tracer, targetPrio int, sig uint32, lifo bool) {
	if t == nil {
		return
	}
	t.Trace().
		Int(`prio`, targetPrio).
		Uint64(`sig`, uint64(sig)).
		Bool(`lifo`, lifo).
		Log(`post`)
}

// Arm reports a time event being armed or rearmed.
func Arm(t *Tracer, rate int, ctr, interval uint32) {
	if t == nil {
		return
	}
	t.Trace().
		Int(`rate`, rate).
		Uint64(`ctr`, uint64(ctr)).
		Uint64(`interval`, uint64(interval)).
		Log(`arm`)
}

// PoolExhausted reports a margin-gated allocation that returned nil instead
// of panicking — a caller explicitly tolerated a possible failure, and the
// tracer records that it actually happened.
func PoolExhausted(t *Tracer, poolIndex int) {
	if t == nil {
		return
	}
	t.Warning().
		Int(`pool`, poolIndex).
		Log(`pool exhausted`)
}
