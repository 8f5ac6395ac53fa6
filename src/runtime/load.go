package runtime

import (
	"fmt"

	"artico3/src/hw"
	"artico3/src/misc"
	"artico3/src/rcfg"
)

// Load places an accelerator of the named kernel into a slot and assigns
// its redundancy groups (0 means ungrouped). Partial reconfiguration runs
// only when the slot is empty, holds a different kernel, or force is set;
// the slot assignment and group fields are updated either way.
//
// Load spins until no kernel is mid-round, then performs the whole mutation
// under the lock. A loader failure leaves the slot in the loading state;
// the slot is unusable until a later Load succeeds.
func (this *Runtime) Load(name string, slot int, tmr uint8, dmr uint8, force bool) error {
	if slot < 0 || slot >= this.shuffler.NSlots {
		return fmt.Errorf("%w: slot index %d out of range (0..%d)", ErrNotFound, slot, this.shuffler.NSlots-1)
	}

	this.guard.lock()
	_, kernel, err := this.kernelByName(name)
	this.guard.unlock()
	if err != nil {
		return err
	}
	id := kernel.ID

	this.guard.acquireQuiescent()
	defer this.guard.unlock()

	reconf := force
	switch {
	case this.shuffler.Slots[slot].State == hw.SlotEmpty:
		reconf = true
	case this.slotKernelName(slot) != name:
		reconf = true
	}

	if reconf {
		this.shuffler.Slots[slot].State = hw.SlotLoading
		path := rcfg.PartialBitstreamPath(name, slot)
		if err := this.loader.Load(path, true); err != nil {
			return fmt.Errorf("%w: slot %d: %v", ErrSlotFailed, slot, err)
		}
		this.shuffler.Slots[slot].State = hw.SlotIdle
	}

	this.shuffler.SetSlot(slot, id, tmr, dmr)

	// The bank contents may have changed under the accelerator; constants
	// must travel again on the next transfer.
	kernel.CLoaded = false

	misc.Debugf("loaded accelerator %q on slot %d (tmr=%d,dmr=%d,reconf=%v)", name, slot, tmr, dmr, reconf)

	return nil
}

// Unload empties a slot and clears its shadow register fields, spinning for
// quiescence the same way Load does.
func (this *Runtime) Unload(slot int) error {
	if slot < 0 || slot >= this.shuffler.NSlots {
		return fmt.Errorf("%w: slot index %d out of range (0..%d)", ErrNotFound, slot, this.shuffler.NSlots-1)
	}

	this.guard.acquireQuiescent()
	defer this.guard.unlock()

	this.shuffler.ClearSlot(slot)
	misc.Debugf("removed accelerator from slot %d", slot)

	return nil
}

// slotKernelName resolves the kernel currently recorded for a slot. A slot
// whose kernel has been released resolves to the empty string and therefore
// always triggers reconfiguration on the next Load.
func (this *Runtime) slotKernelName(slot int) string {
	id := this.shuffler.Slots[slot].Kernel
	if id == 0 {
		return ""
	}
	kernel := this.kernels[id-1]
	if kernel == nil {
		return ""
	}
	return kernel.Name
}
