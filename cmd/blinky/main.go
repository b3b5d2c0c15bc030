// Command blinky demonstrates the smallest useful RTEF application: one
// active object whose HSM toggles between two states on every periodic
// time event, driven by the cooperative scheduler to completion, with its
// final state snapshotted to disk.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kestrel-systems/rtef"
	"github.com/kestrel-systems/rtef/internal/hsm"
	"github.com/kestrel-systems/rtef/internal/qevt"
	"github.com/kestrel-systems/rtef/logging"
	"github.com/kestrel-systems/rtef/persist"
	"github.com/kestrel-systems/rtef/timer"
)

const sigTick qevt.Signal = qevt.UserSig

type led struct {
	on     bool
	blinks int
}

func ledInitial(o *led, e *qevt.Envelope) hsm.Result[*led] {
	return hsm.Tran(ledOff)
}

func ledOff(o *led, e *qevt.Envelope) hsm.Result[*led] {
	switch e.Sig {
	case qevt.Entry:
		o.on = false
		fmt.Println("led: off")
		return hsm.HandledR[*led]()
	case sigTick:
		return hsm.Tran(ledOn)
	}
	return hsm.SuperOf[*led](hsm.Top[*led])
}

func ledOn(o *led, e *qevt.Envelope) hsm.Result[*led] {
	switch e.Sig {
	case qevt.Entry:
		o.on = true
		o.blinks++
		fmt.Println("led: on")
		return hsm.HandledR[*led]()
	case sigTick:
		return hsm.Tran(ledOff)
	}
	return hsm.SuperOf[*led](hsm.Top[*led])
}

// RestoreState implements persist.Restorer, recovering the blink count a
// prior run snapshotted. It does not resolve stateName back to a handler
// here since this demo always restarts from ledInitial; a longer-lived
// application would keep a name->Handler map and call HSM().Restore.
func (o *led) RestoreState(stateName string, data any) error {
	if count, ok := data.(float64); ok {
		o.blinks = int(count)
	}
	return nil
}

func main() {
	fw := rtef.Init(16, logging.New(os.Stdout, 0), nil)
	fw.PoolInit(8, 4)

	owner := &led{}
	obj := rtef.StartActiveObject(fw, owner, ledInitial, 4, 1)

	wheel := timer.NewTable(fw.CS)
	ev := timer.New(fw.CS, sigTick, obj, nil)
	wheel.Arm(0, ev, 1, 1)

	ticker := timer.NewTickerAO(fw.CS, fw.Pools, wheel, 8)
	ticker.Start(fw.Reg, 2)

	const totalTicks = 6
	for i := 0; i < totalTicks; i++ {
		ticker.Tick(0)
	}
	fw.Run(func() { fw.Stop() })

	fmt.Printf("blinked %d times\n", owner.blinks)

	store, err := persist.NewJSONStore("/tmp/rtef-blinky")
	if err != nil {
		fmt.Println("snapshot store unavailable:", err)
		return
	}
	ctx := context.Background()
	rec := persist.Snapshot("led", obj.Prio(), snapshotAdapter{owner, obj})
	if err := store.Save(ctx, rec); err != nil {
		fmt.Println("snapshot save failed:", err)
		return
	}
	loaded, err := store.Load(ctx, "led")
	if err != nil {
		fmt.Println("snapshot load failed:", err)
		return
	}
	if err := persist.Apply(loaded, owner); err != nil {
		fmt.Println("snapshot apply failed:", err)
	}
}

// snapshotAdapter implements persist.Snapshotter for led: the HSM's
// current leaf state lives on the active object, not on led itself.
type snapshotAdapter struct {
	owner *led
	obj   interface{ HSM() *hsm.HSM[*led] }
}

func (a snapshotAdapter) SnapshotState() (string, any) {
	return hsm.StateName(a.obj.HSM().Current()), a.owner.blinks
}
