package hw

import (
	"errors"
)

// SlotState is the lifecycle state of a reconfigurable slot.
type SlotState int

const (
	SlotEmpty   SlotState = iota // no accelerator present
	SlotIdle                     // accelerator loaded and idle
	SlotLoading                  // partial reconfiguration in progress
	SlotWrite                    // receiving data from main memory
	SlotRun                      // computing
	SlotReady                    // finished computing
	SlotRead                     // sending data to main memory
)

// Slot tracks one reconfigurable region. Kernel is the numeric kernel ID
// loaded into the slot, 0 when none; slots never hold direct references to
// kernel objects, the registry resolves the ID when needed.
type Slot struct {
	Kernel uint8
	State  SlotState
	TMR    uint8
	DMR    uint8
}

// Shuffler is the shadow copy of the Data Shuffler configuration: three
// 64-bit registers at 4 bits per slot (kernel ID, TMR group, DMR group),
// the transfer block size, the clock gate and the slot table. There is one
// instance per process and every mutation happens under the runtime lock.
type Shuffler struct {
	IDReg      uint64
	TMRReg     uint64
	DMRReg     uint64
	BlkSizeReg uint32
	ClkGateReg uint32
	NSlots     int
	Slots      []Slot
}

// ErrNoAccelerators reports a kernel ID that no slot currently carries.
var ErrNoAccelerators = errors.New("no accelerators loaded for kernel id")

// InitSlots sizes the slot table for the slot count reported by hardware.
func (this *Shuffler) InitSlots(nslots int) {
	this.NSlots = nslots
	this.Slots = make([]Slot, nslots)
}

// SetSlot splices the three 4-bit fields of a slot into the shadow
// registers, clear-then-set, and mirrors them in the slot table.
func (this *Shuffler) SetSlot(slot int, id uint8, tmr uint8, dmr uint8) {
	shift := uint(4 * slot)

	this.IDReg &^= uint64(0xf) << shift
	this.IDReg |= uint64(id) << shift

	this.TMRReg &^= uint64(0xf) << shift
	this.TMRReg |= uint64(tmr) << shift

	this.DMRReg &^= uint64(0xf) << shift
	this.DMRReg |= uint64(dmr) << shift

	this.Slots[slot].Kernel = id
	this.Slots[slot].TMR = tmr
	this.Slots[slot].DMR = dmr
}

// ClearSlot removes a slot from the shadow registers and the slot table.
func (this *Shuffler) ClearSlot(slot int) {
	shift := uint(4 * slot)

	this.IDReg &^= uint64(0xf) << shift
	this.TMRReg &^= uint64(0xf) << shift
	this.DMRReg &^= uint64(0xf) << shift

	this.Slots[slot] = Slot{}
}

// EquivalentAccelerators resolves the current slot assignment into the
// number of independent compute units for a kernel ID: all slots sharing a
// (kernel, TMR group) pair vote as a single accelerator, same for DMR pairs,
// and ungrouped slots count individually.
//
// This assumes a well-formed configuration (no TMR group with fewer than
// three members, no DMR group with fewer than two).
func (this *Shuffler) EquivalentAccelerators(id uint8) (int, error) {
	idReg := this.IDReg
	tmrReg := this.TMRReg
	dmrReg := this.DMRReg

	// Walk the registers nibble by nibble; whenever a slot with the target
	// ID heads a redundancy group, strip the remaining members so they are
	// not counted again.
	naccs := 0
	for idReg != 0 {
		auxID := uint8(idReg & 0xf)
		auxTMR := uint8(tmrReg & 0xf)
		auxDMR := uint8(dmrReg & 0xf)
		if auxID == id {
			if auxTMR != 0 {
				for i := 1; i < this.NSlots; i++ {
					shift := uint(4 * i)
					if uint8(idReg>>shift)&0xf != auxID {
						continue
					}
					if uint8(tmrReg>>shift)&0xf == auxTMR {
						tmrReg &^= uint64(0xf) << shift
						idReg &^= uint64(0xf) << shift
					}
				}
			} else if auxDMR != 0 {
				for i := 1; i < this.NSlots; i++ {
					shift := uint(4 * i)
					if uint8(idReg>>shift)&0xf != auxID {
						continue
					}
					if uint8(dmrReg>>shift)&0xf == auxDMR {
						dmrReg &^= uint64(0xf) << shift
						idReg &^= uint64(0xf) << shift
					}
				}
			}
			naccs++
		}
		idReg >>= 4
		tmrReg >>= 4
		dmrReg >>= 4
	}
	if naccs == 0 {
		return 0, ErrNoAccelerators
	}

	return naccs, nil
}

// ReadyMask computes the expected ready register contents for a kernel ID:
// one bit per slot position whose ID nibble matches. A round is finished
// when (ready & mask) == mask.
func (this *Shuffler) ReadyMask(id uint8) uint32 {
	var ready uint32

	idReg := this.IDReg
	for i := 0; idReg != 0; i++ {
		if uint8(idReg&0xf) == id {
			ready |= 1 << uint(i)
		}
		idReg >>= 4
	}

	return ready
}

// SetupTransfer programs the hardware configuration registers (ID, TMR,
// DMR, block size) from the shadow copy. Register-based transactions use a
// block size of zero.
func (this *Shuffler) SetupTransfer(rf RegisterFile, blksize uint32) {
	rf.WriteReg(RegIDLow, uint32(this.IDReg))
	rf.WriteReg(RegIDHigh, uint32(this.IDReg>>32))
	rf.WriteReg(RegTMRLow, uint32(this.TMRReg))
	rf.WriteReg(RegTMRHigh, uint32(this.TMRReg>>32))
	rf.WriteReg(RegDMRLow, uint32(this.DMRReg))
	rf.WriteReg(RegDMRHigh, uint32(this.DMRReg>>32))
	rf.WriteReg(RegBlockSize, blksize)
	this.BlkSizeReg = blksize
}

// EnableClocks ungates the clock of every available slot.
func (this *Shuffler) EnableClocks(rf RegisterFile) {
	var clkgate uint32
	for i := 0; i < this.NSlots; i++ {
		clkgate |= 1 << uint(i)
	}
	this.ClkGateReg = clkgate
	rf.WriteReg(RegClockGate, clkgate)
}

// DisableClocks gates the clock of the whole reconfigurable region.
func (this *Shuffler) DisableClocks(rf RegisterFile) {
	this.ClkGateReg = 0
	rf.WriteReg(RegClockGate, 0)
}
