// Package runtime manages a pool of reconfigurable hardware slots as
// interchangeable accelerator instances. Kernels (accelerator types) are
// created by name, loaded into slots through partial reconfiguration, and
// executed with work distributed across however many equivalent
// accelerators the current slot assignment provides, optionally under
// double or triple modular redundancy.
package runtime

import (
	"fmt"

	"artico3/src/hw"
	"artico3/src/misc"
	"artico3/src/rcfg"
)

// Config collects the external collaborators of the runtime.
type Config struct {
	// Registers is the memory-mapped control interface of the Shuffler.
	Registers hw.RegisterFile

	// Engine performs bulk host/accelerator copies.
	Engine hw.TransferEngine

	// Loader programs partial bitstreams into slots.
	Loader rcfg.Loader

	// Waiter, when set, blocks on driver-provided completion signaling
	// instead of busy-polling the ready register.
	Waiter hw.CompletionWaiter
}

// exec tracks one in-flight kernel execution.
type exec struct {
	done chan struct{}
	err  error
}

// Runtime is the process-wide resource manager: kernel list, slot table,
// shadow configuration registers and the scheduling machinery. All external
// references to kernels and slots are names and small integer indices;
// nothing outside the runtime holds pointers into its arenas.
type Runtime struct {
	guard execGuard

	rf     hw.RegisterFile
	engine hw.TransferEngine
	loader rcfg.Loader
	waiter hw.CompletionWaiter

	shuffler hw.Shuffler
	kernels  [MaxKernels]*Kernel
	execs    [MaxKernels]*exec
}

// Open queries the static system for its slot count, sizes the slot table
// and ungates the accelerator clocks.
func Open(cfg Config) (*Runtime, error) {
	this := &Runtime{
		rf:     cfg.Registers,
		engine: cfg.Engine,
		loader: cfg.Loader,
		waiter: cfg.Waiter,
	}

	nslots := hw.NumSlots(this.rf)
	if nslots <= 0 {
		return nil, fmt.Errorf("%w: firmware reports no reconfigurable slots", ErrNotFound)
	}
	if nslots > hw.MaxSlots {
		return nil, fmt.Errorf("%w: firmware reports %d slots, shadow registers hold %d", ErrInvalidArgument, nslots, hw.MaxSlots)
	}

	this.shuffler.InitSlots(nslots)
	this.shuffler.EnableClocks(this.rf)
	misc.Debugf("runtime open (nslots=%d)", nslots)

	return this, nil
}

// Close gates the accelerator clocks. In-flight executions must have been
// waited for; Close does not cancel them.
func (this *Runtime) Close() {
	this.guard.lock()
	defer this.guard.unlock()

	this.shuffler.DisableClocks(this.rf)
}

// NumSlots returns the slot count of the static system.
func (this *Runtime) NumSlots() int {
	return this.shuffler.NSlots
}

// SlotCycles reads the cycle performance counter of a slot.
func (this *Runtime) SlotCycles(slot int) (uint32, error) {
	if slot < 0 || slot >= this.shuffler.NSlots {
		return 0, fmt.Errorf("%w: slot index %d out of range (0..%d)", ErrNotFound, slot, this.shuffler.NSlots-1)
	}
	return hw.PMCCycles(this.rf, slot), nil
}

// SlotErrors reads the voting-error performance counter of a slot.
func (this *Runtime) SlotErrors(slot int) (uint32, error) {
	if slot < 0 || slot >= this.shuffler.NSlots {
		return 0, fmt.Errorf("%w: slot index %d out of range (0..%d)", ErrNotFound, slot, this.shuffler.NSlots-1)
	}
	return hw.PMCErrors(this.rf, slot, this.shuffler.NSlots), nil
}
