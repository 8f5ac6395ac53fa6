package runtime

import (
	"fmt"

	"artico3/src/hw"
	"artico3/src/misc"
)

// KernelWCfg writes one configuration register in every equivalent
// accelerator of a kernel. cfg carries one value per equivalent accelerator,
// ordered TMR groups ascending, then DMR groups ascending, then ungrouped
// slots by slot index.
func (this *Runtime) KernelWCfg(name string, reg uint16, cfg []hw.Data) error {
	return this.kernelCfg(name, reg, cfg, true)
}

// KernelRCfg reads one configuration register from every equivalent
// accelerator of a kernel into cfg, in the same order as KernelWCfg. Reads
// from a redundancy group return the voted value.
func (this *Runtime) KernelRCfg(name string, reg uint16, cfg []hw.Data) error {
	return this.kernelCfg(name, reg, cfg, false)
}

// kernelCfg walks the equivalent accelerators of a kernel one by one: for
// each group it builds a scratch register configuration that selects only
// that group, programs it with a zero block size and performs a single
// register transaction. The shadow registers are restored afterwards; the
// next data transfer reprograms the hardware from them.
func (this *Runtime) kernelCfg(name string, reg uint16, cfg []hw.Data, write bool) error {
	this.guard.acquireQuiescent()
	defer this.guard.unlock()

	_, kernel, err := this.kernelByName(name)
	if err != nil {
		return err
	}
	id := kernel.ID

	naccs, err := this.shuffler.EquivalentAccelerators(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(cfg) != naccs {
		return fmt.Errorf("%w: %d configuration values for %d equivalent accelerators", ErrInvalidArgument, len(cfg), naccs)
	}

	idReg := this.shuffler.IDReg
	tmrReg := this.shuffler.TMRReg
	dmrReg := this.shuffler.DMRReg
	defer func() {
		this.shuffler.IDReg = idReg
		this.shuffler.TMRReg = tmrReg
		this.shuffler.DMRReg = dmrReg
	}()

	acc := 0
	apply := func(selID uint64, selTMR uint64, selDMR uint64) {
		this.shuffler.IDReg = selID
		this.shuffler.TMRReg = selTMR
		this.shuffler.DMRReg = selDMR
		this.shuffler.SetupTransfer(this.rf, 0)
		if write {
			hw.RegWrite(this.rf, id, hw.OpRegAccess, reg, uint32(cfg[acc]))
		} else {
			cfg[acc] = hw.RegRead(this.rf, id, hw.OpRegAccess, reg)
		}
		misc.Debugf("cfg id %x | reg %#x | acc %d | write %t", id, reg, acc, write)
		acc++
	}

	// TMR groups, ascending group number.
	for g := uint8(1); g <= 0xf; g++ {
		var selID, selTMR, selDMR uint64
		for s := 0; s < this.shuffler.NSlots; s++ {
			slot := &this.shuffler.Slots[s]
			if slot.State == hw.SlotEmpty || slot.Kernel != id || slot.TMR != g {
				continue
			}
			shift := uint(4 * s)
			selID |= uint64(id) << shift
			selTMR |= uint64(g) << shift
		}
		if selID != 0 {
			apply(selID, selTMR, selDMR)
		}
	}

	// DMR groups, ascending group number. A slot carrying both group
	// fields belongs to its TMR group and is skipped here, consuming one
	// configuration word instead of two; selecting on the DMR nibble
	// alone would walk past the end of cfg.
	for g := uint8(1); g <= 0xf; g++ {
		var selID, selTMR, selDMR uint64
		for s := 0; s < this.shuffler.NSlots; s++ {
			slot := &this.shuffler.Slots[s]
			if slot.State == hw.SlotEmpty || slot.Kernel != id || slot.TMR != 0 || slot.DMR != g {
				continue
			}
			shift := uint(4 * s)
			selID |= uint64(id) << shift
			selDMR |= uint64(g) << shift
		}
		if selID != 0 {
			apply(selID, selTMR, selDMR)
		}
	}

	// Ungrouped slots, ascending slot index, one transaction each.
	for s := 0; s < this.shuffler.NSlots; s++ {
		slot := &this.shuffler.Slots[s]
		if slot.State == hw.SlotEmpty || slot.Kernel != id || slot.TMR != 0 || slot.DMR != 0 {
			continue
		}
		apply(uint64(id)<<uint(4*s), 0, 0)
	}

	return nil
}

// KernelReset issues the selective reset command to every accelerator of a
// kernel.
//
// Resetting right after a partial reconfiguration does not take effect
// reliably; run at least one transfer on the freshly loaded slots first.
func (this *Runtime) KernelReset(name string) error {
	this.guard.acquireQuiescent()
	defer this.guard.unlock()

	_, kernel, err := this.kernelByName(name)
	if err != nil {
		return err
	}

	this.shuffler.SetupTransfer(this.rf, 0)
	hw.RegWrite(this.rf, kernel.ID, hw.OpReset, 0, 0)
	misc.Debugf("reset kernel (name=%s,id=%x)", name, kernel.ID)

	return nil
}

// GetNaccs returns the number of equivalent accelerators the current slot
// assignment provides for a kernel. Callers size the cfg argument of
// KernelWCfg and KernelRCfg with it.
func (this *Runtime) GetNaccs(name string) (int, error) {
	this.guard.lock()
	defer this.guard.unlock()

	_, kernel, err := this.kernelByName(name)
	if err != nil {
		return 0, err
	}

	naccs, err := this.shuffler.EquivalentAccelerators(kernel.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return naccs, nil
}
