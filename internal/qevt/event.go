// Package qevt defines the event primitive shared by every core component:
// the event queue (C4), the event pool (C3), the HSM engine (C5), and
// publish-subscribe (C8).
//
// An Event is an immutable header {Signal, PoolID, RefCtr} carried by an
// Envelope that also holds the opaque user payload. The header is exported
// for read-only access in handlers; consumers must not mutate a dispatched
// event.
//
// PoolID == 0 marks a static event (built-in reserved signals, or an event
// constructed once and kept at package scope): it is never counted and
// never freed. PoolID > 0 identifies pool index PoolID-1 in the
// framework's pool table; such an event must be returned to that pool
// exactly once, when RefCtr reaches zero.
package qevt

// Reserved signals the HSM engine uses internally. User signals must start
// at or above UserSig.
const (
	Empty Signal = 0
	Entry Signal = 1
	Exit  Signal = 2
	Init  Signal = 3

	// UserSig is the first signal value applications may use.
	UserSig Signal = 4
)

// Signal identifies the kind of an event. Values below UserSig are
// reserved for the HSM engine.
type Signal uint32

// Event is the fixed header every allocated or static envelope carries.
type Event struct {
	Sig    Signal
	PoolID uint8
	RefCtr uint8
}

// IsStatic reports whether e is a static (uncounted) event.
func (e *Event) IsStatic() bool {
	return e.PoolID == 0
}

// Envelope is the unit of allocation: a header plus an opaque payload.
// Envelope also doubles as the free-list node when it is sitting unused in
// a pool — Next is valid only while the envelope is on a pool's free list,
// and is the pool's exclusive field (application code must never read or
// write it).
type Envelope struct {
	Event
	Payload any
	Next    *Envelope
}

// NewStatic returns a static envelope: PoolID 0, uncounted, never recycled.
func NewStatic(sig Signal, payload any) *Envelope {
	return &Envelope{Event: Event{Sig: sig}, Payload: payload}
}

// reserved are the four preallocated static events QEP_TRIG_-equivalent
// code sends to state handlers to probe the superstate chain and to run
// entry/exit/init actions.
var reserved = [4]Envelope{
	{Event: Event{Sig: Empty}},
	{Event: Event{Sig: Entry}},
	{Event: Event{Sig: Exit}},
	{Event: Event{Sig: Init}},
}

// Reserved returns the shared static envelope for one of the four internal
// signals (Empty, Entry, Exit, Init).
func Reserved(sig Signal) *Envelope {
	return &reserved[sig]
}
