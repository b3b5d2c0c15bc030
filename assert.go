// Package rtef is the application-facing surface of the framework: it ties
// together the priority set (C1), event pool (C3), active-object registry
// and scheduler core (C6/C9), publish-subscribe (C8), and time-event wheel
// (C7) behind a single Framework value, the way the original's "global
// mutable singletons" are re-expressed per spec.md §9's design note as one
// constructed value instead of file-scope statics.
package rtef

import (
	"fmt"

	"github.com/kestrel-systems/rtef/logging"
)

// AssertHandler is the core's single fatal-contract-violation funnel
// (spec.md §7's "onAssert(module, line) -> never-returns"). The default,
// DefaultAssertHandler, panics; a hosted target can install a handler that
// halts or resets instead.
type AssertHandler func(module string, line int, msg string)

// DefaultAssertHandler panics with a message identifying the violated
// contract's module and location.
func DefaultAssertHandler(module string, line int, msg string) {
	panic(fmt.Sprintf("rtef: fatal contract violation in %s:%d: %s", module, line, msg))
}

// Assert is the funnel every core component not already using its own
// panic (pool/queue/HSM/active already panic directly for the contract
// violations in their immediate control, per spec.md §7) routes truly
// cross-cutting fatal conditions through. It always records a structured
// trace through tracer before invoking handler, so a fatal violation on a
// target without an observable stderr still leaves a trace behind.
func Assert(tracer *logging.Tracer, handler AssertHandler, module string, line int, msg string) {
	if tracer != nil {
		tracer.Emerg().
			Str(`module`, module).
			Int(`line`, line).
			Log(msg)
	}
	if handler == nil {
		handler = DefaultAssertHandler
	}
	handler(module, line, msg)
}
