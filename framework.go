package rtef

import (
	"fmt"

	"github.com/kestrel-systems/rtef/config"
	"github.com/kestrel-systems/rtef/critsec"
	"github.com/kestrel-systems/rtef/internal/active"
	"github.com/kestrel-systems/rtef/internal/hsm"
	"github.com/kestrel-systems/rtef/internal/mpool"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/kestrel-systems/rtef/internal/sched"
	"github.com/kestrel-systems/rtef/logging"
	"github.com/kestrel-systems/rtef/pubsub"
	"github.com/kestrel-systems/rtef/timer"
)

// Framework is the one constructed value that replaces the original's
// global mutable singletons (pool table, AO registry, subscriber lists):
// every core call an application makes goes through a Framework instance,
// per spec.md §9's design note.
type Framework struct {
	CS     *critsec.Section
	Pools  *mpool.Table
	Reg    *active.Registry
	Sched  *sched.Scheduler
	Pub    *pubsub.Publisher
	Timers *timer.Table
	Tracer *logging.Tracer
	Assert AssertHandler
}

// Init constructs a Framework (spec.md §6's init()): a fresh critical
// section, an empty pool table awaiting PoolInit calls, an active-object
// registry and subscriber table sized for signals below maxSignal, a
// scheduler, a publisher, and a time-event table. tracer and handler may
// both be nil; Init supplies Discard() and DefaultAssertHandler respectively.
func Init(maxSignal qevt.Signal, tracer *logging.Tracer, handler AssertHandler) *Framework {
	if tracer == nil {
		tracer = logging.Discard()
	}
	if handler == nil {
		handler = DefaultAssertHandler
	}

	cs := critsec.New()
	pools := mpool.NewTable(cs)
	reg := active.NewRegistry(cs, maxSignal)
	scheduler := sched.New(cs, pools, reg, nil)
	pub := pubsub.New(reg, pools, scheduler)
	timers := timer.NewTable(cs)

	return &Framework{
		CS:     cs,
		Pools:  pools,
		Reg:    reg,
		Sched:  scheduler,
		Pub:    pub,
		Timers: timers,
		Tracer: tracer,
		Assert: handler,
	}
}

// FromConfig builds a Framework from a declarative FrameworkConfig (config
// package, spec.md §9.2): Init plus pool registration for every configured
// pool. cfg.ActiveObjects and cfg.TickRates describe active objects and
// time-event rates the application still starts/arms itself, since a
// typed owner and a target Handle can't be constructed from a generic
// config value; they are metadata for the application to cross-check its
// own Start/Arm calls against.
func FromConfig(cfg *config.FrameworkConfig, tracer *logging.Tracer, handler AssertHandler) (*Framework, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rtef: invalid config: %w", err)
	}
	f := Init(qevt.Signal(cfg.MaxSignal), tracer, handler)
	for _, p := range cfg.Pools {
		f.PoolInit(p.BlockSize, p.Count)
	}
	return f, nil
}

// PoolInit registers a new fixed-block event pool (spec.md §6's
// poolInit(storage, size, block_size)); pools must be registered in
// strictly ascending block-size order. There is no separate storage
// parameter: mpool.NewPool owns its preallocated blocks directly instead
// of the caller supplying backing storage, since Go has no equivalent of a
// statically-sized C array the original carves pools out of.
func (f *Framework) PoolInit(blockSize, count int) *mpool.Pool {
	p := mpool.NewPool(blockSize, count)
	f.Pools.Register(p)
	return p
}

// Run drives the cooperative scheduler (spec.md §6's run(), the QV model)
// until Stop is called. idle is invoked whenever no active object is
// ready; pass nil to busy-loop.
func (f *Framework) Run(idle sched.IdleHook) {
	f.Sched.SetIdle(idle)
	f.Sched.Run()
}

// Stop breaks Run out of its loop after the current iteration.
func (f *Framework) Stop() {
	f.Sched.Stop()
}

// AssertFatal routes a fatal contract violation detected by application
// code (rather than by a core component, which panics directly) through
// this Framework's tracer and AssertHandler.
func (f *Framework) AssertFatal(module string, line int, msg string) {
	Assert(f.Tracer, f.Assert, module, line, msg)
}

// StartActiveObject constructs and starts an active object bound to
// owner's HSM (top-most initial transition initial), registering it in
// f's registry at prio with a queue of queueCap events. This is the
// generic free function StartActiveObject takes the place of a method
// would have to be, since Go forbids a generic method introducing its own
// type parameter on a non-generic receiver.
func StartActiveObject[T any](f *Framework, owner T, initial hsm.Handler[T], queueCap, prio int) *active.Object[T] {
	obj := active.New[T](owner, initial, queueCap, f.Pools, f.CS)
	active.Start(f.Reg, obj, prio)
	return obj
}

// StopActiveObject removes obj from f's registry, freeing its priority.
func StopActiveObject[T any](f *Framework, obj *active.Object[T]) {
	active.Stop(obj)
}
