package hw

// Data is the native 32-bit word exchanged between host buffers and
// accelerator local memories. All block sizes and transfer lengths in this
// package are measured in these words unless a name says otherwise.
type Data = uint32

// WordBytes is the size of one Data word in bytes.
const WordBytes = 4

// MaxSlots is the hardware ceiling on reconfigurable slots: the three 64-bit
// shadow registers carry one 4-bit field per slot.
const MaxSlots = 16

// Data Shuffler control register offsets, in 32-bit words from the base of
// the control memory map.
const (
	RegIDLow     = 0x00 >> 2 // kernel ID register (low half)
	RegIDHigh    = 0x04 >> 2 // kernel ID register (high half)
	RegTMRLow    = 0x08 >> 2 // TMR group register (low half)
	RegTMRHigh   = 0x0c >> 2 // TMR group register (high half)
	RegDMRLow    = 0x10 >> 2 // DMR group register (low half)
	RegDMRHigh   = 0x14 >> 2 // DMR group register (high half)
	RegBlockSize = 0x18 >> 2 // words per accelerator per transfer
	RegClockGate = 0x1c >> 2 // clock gating, one bit per slot
	RegNSlots    = 0x28 >> 2 // firmware info: number of slots
	RegReady     = 0x2c >> 2 // ready bitmask, one bit per slot
	RegPMCCycles = 0x30 >> 2 // per-slot cycle counters start here
)

// RegisterFile is the memory-mapped control interface of the Data Shuffler.
// The production implementation maps the physical device; tests and the
// bundled simulator provide in-memory ones.
type RegisterFile interface {
	ReadReg(offset uint32) uint32
	WriteReg(offset uint32, value uint32)
}

// kernelRegAddr computes the word offset of a register transaction directed
// at the accelerators of a kernel. The memory map packs 4 bits of kernel ID,
// 4 bits of operation code and a 12-bit register address.
func kernelRegAddr(id uint8, op uint8, reg uint16) uint32 {
	return ((uint32(id&0xf)<<16 | uint32(op&0xf)<<12) >> 2) | uint32(reg&0xfff)
}

// Accelerator operation codes for register transactions.
const (
	OpRegAccess = 0x0 // plain register read/write
	OpReset     = 0x1 // selective reset of all accelerators with the ID
	OpStart     = 0x2 // selective start of all accelerators with the ID
)

// RegWrite performs a register transaction against every accelerator
// currently selected by the ID/TMR/DMR configuration registers. Besides plain
// register writes it carries the selective start and reset commands, for
// which the value is ignored.
func RegWrite(rf RegisterFile, id uint8, op uint8, reg uint16, value uint32) {
	rf.WriteReg(kernelRegAddr(id, op, reg), value)
}

// RegRead performs a register read transaction. The hardware resolves the
// redundancy voting for the selected group and returns a single word.
func RegRead(rf RegisterFile, id uint8, op uint8, reg uint16) uint32 {
	return rf.ReadReg(kernelRegAddr(id, op, reg))
}

// NumSlots reads the slot count reported by the static system firmware.
func NumSlots(rf RegisterFile) int {
	return int(rf.ReadReg(RegNSlots))
}

// TransferDone checks a processing round against the expected ready mask.
func TransferDone(rf RegisterFile, readymask uint32) bool {
	return rf.ReadReg(RegReady)&readymask == readymask
}

// PMCCycles reads the cycle performance counter of a slot.
func PMCCycles(rf RegisterFile, slot int) uint32 {
	return rf.ReadReg(uint32(RegPMCCycles + slot))
}

// PMCErrors reads the error performance counter of a slot. The error
// counters sit directly after the cycle counters, one word per slot.
func PMCErrors(rf RegisterFile, slot int, nslots int) uint32 {
	return rf.ReadReg(uint32(RegPMCCycles + nslots + slot))
}
