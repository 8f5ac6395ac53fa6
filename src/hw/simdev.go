package hw

import (
	"fmt"
	"sync"
)

// simRegKey addresses one accelerator register under one exact slot
// selection. Keying on the selection reproduces the hardware behavior of
// register transactions reaching only the accelerators picked out by the
// configuration registers at the time of the access.
type simRegKey struct {
	sel  uint64
	addr uint32
}

// SimDevice is an in-memory model of the Data Shuffler: register file,
// transfer engine and completion signaling in one object. Each slot owns a
// local memory image; input transfers scatter one block per equivalent
// accelerator (every member of a redundancy group receives the same block)
// and output transfers gather from group leaders. Accelerators "compute"
// instantly; an optional Process hook transforms the local memory of each
// participating slot so data paths can be exercised end to end.
type SimDevice struct {
	mu   sync.Mutex
	cond *sync.Cond

	ctrl   map[uint32]uint32
	kregs  map[simRegKey]uint32
	mems   map[int][]Data
	nslots int

	// Process, when set, runs on every slot taking part in a started
	// round, with that slot's local memory.
	Process func(slot int, mem []Data)

	// SlotWords sizes the local memory of every slot taking part in a
	// round before Process runs. Transfers grow a memory only as far as
	// they write, so a hook addressing banks beyond the input scatter
	// needs the full size declared here.
	SlotWords int

	// Transfers counts submitted DMA operations, zero-length ones included.
	Transfers int
}

// NewSimDevice builds a simulated device reporting the given slot count.
func NewSimDevice(nslots int) *SimDevice {
	this := &SimDevice{
		ctrl:   make(map[uint32]uint32),
		kregs:  make(map[simRegKey]uint32),
		mems:   make(map[int][]Data),
		nslots: nslots,
	}
	this.cond = sync.NewCond(&this.mu)
	this.ctrl[RegNSlots] = uint32(nslots)
	return this
}

// ctrlLimit is the first word offset outside the control block; kernel
// register transactions always carry a non-zero ID nibble and land far above.
const ctrlLimit = 1 << 10

func (this *SimDevice) ReadReg(offset uint32) uint32 {
	this.mu.Lock()
	defer this.mu.Unlock()

	if offset < ctrlLimit {
		return this.ctrl[offset]
	}
	return this.kregs[simRegKey{sel: this.selection(), addr: offset}]
}

func (this *SimDevice) WriteReg(offset uint32, value uint32) {
	this.mu.Lock()
	defer this.mu.Unlock()

	if offset < ctrlLimit {
		this.ctrl[offset] = value
		return
	}

	id := uint8(offset >> 14 & 0xf)
	op := uint8(offset >> 10 & 0xf)
	switch op {
	case OpStart:
		this.startLocked(id)
	case OpReset:
		this.ctrl[RegReady] &^= this.maskLocked(id)
	default:
		this.kregs[simRegKey{sel: this.selection(), addr: offset}] = value
	}
}

// selection combines the two halves of the ID configuration register; it
// identifies exactly which slots a register transaction addresses.
func (this *SimDevice) selection() uint64 {
	return uint64(this.ctrl[RegIDHigh])<<32 | uint64(this.ctrl[RegIDLow])
}

func (this *SimDevice) nibble(reg uint64, slot int) uint8 {
	return uint8(reg>>(4*uint(slot))) & 0xf
}

// groupsLocked resolves the programmed configuration registers into the
// equivalent accelerators of a kernel, in block distribution order: group
// leaders ascending by slot index, each group listing its member slots.
func (this *SimDevice) groupsLocked(id uint8) [][]int {
	idReg := this.selection()
	tmrReg := uint64(this.ctrl[RegTMRHigh])<<32 | uint64(this.ctrl[RegTMRLow])
	dmrReg := uint64(this.ctrl[RegDMRHigh])<<32 | uint64(this.ctrl[RegDMRLow])

	claimed := make([]bool, this.nslots)
	var groups [][]int
	for s := 0; s < this.nslots; s++ {
		if claimed[s] || this.nibble(idReg, s) != id {
			continue
		}
		claimed[s] = true
		group := []int{s}

		tmr := this.nibble(tmrReg, s)
		dmr := this.nibble(dmrReg, s)
		for j := s + 1; j < this.nslots; j++ {
			if claimed[j] || this.nibble(idReg, j) != id {
				continue
			}
			if (tmr != 0 && this.nibble(tmrReg, j) == tmr) || (tmr == 0 && dmr != 0 && this.nibble(dmrReg, j) == dmr) {
				claimed[j] = true
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// maskLocked recomputes the ready mask of a kernel ID from the programmed
// configuration registers.
func (this *SimDevice) maskLocked(id uint8) uint32 {
	var mask uint32
	sel := this.selection()
	for i := 0; i < this.nslots; i++ {
		if this.nibble(sel, i) == id {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// startLocked models one round of computation: run the hook on every
// participating slot, mark the slots ready and charge their cycle counters.
func (this *SimDevice) startLocked(id uint8) {
	mask := this.maskLocked(id)
	for i := 0; i < this.nslots; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		this.growLocked(i, this.SlotWords)
		if this.Process != nil {
			this.Process(i, this.mems[i])
		}
		this.ctrl[uint32(RegPMCCycles+i)]++
	}
	this.ctrl[RegReady] |= mask
	this.cond.Broadcast()
}

// Alloc hands out a scratch region. The simulator has no physical memory
// constraints, so allocation never fails.
func (this *SimDevice) Alloc(words int) ([]Data, error) {
	if words < 0 {
		return nil, fmt.Errorf("negative scratch request (%d words)", words)
	}
	return make([]Data, words), nil
}

func (this *SimDevice) Release(mem []Data) {}

// MemToHW scatters host data into the local memories of the selected
// accelerators and starts them. Zero-length transfers only prime the data
// path.
func (this *SimDevice) MemToHW(mem []Data, hwOffset uint32) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	this.Transfers++
	if len(mem) == 0 {
		return nil
	}

	id := uint8(hwOffset >> 16 & 0xf)
	woff := int(hwOffset&0xffff) / WordBytes
	blk := int(this.ctrl[RegBlockSize])

	for i, group := range this.groupsLocked(id) {
		lo := i * blk
		if lo >= len(mem) {
			break
		}
		hi := lo + blk
		if hi > len(mem) {
			hi = len(mem)
		}
		for _, slot := range group {
			this.growLocked(slot, woff+hi-lo)
			copy(this.mems[slot][woff:], mem[lo:hi])
		}
	}
	this.startLocked(id)

	return nil
}

// HWToMem gathers back from the local memories of the selected
// accelerators, one block per equivalent accelerator taken from its group
// leader.
func (this *SimDevice) HWToMem(mem []Data, hwOffset uint32) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	this.Transfers++
	id := uint8(hwOffset >> 16 & 0xf)
	woff := int(hwOffset&0xffff) / WordBytes
	blk := int(this.ctrl[RegBlockSize])

	for i, group := range this.groupsLocked(id) {
		lo := i * blk
		if lo >= len(mem) {
			break
		}
		hi := lo + blk
		if hi > len(mem) {
			hi = len(mem)
		}
		this.growLocked(group[0], woff+hi-lo)
		copy(mem[lo:hi], this.mems[group[0]][woff:])
	}

	return nil
}

func (this *SimDevice) growLocked(slot int, words int) {
	if len(this.mems[slot]) < words {
		grown := make([]Data, words)
		copy(grown, this.mems[slot])
		this.mems[slot] = grown
	}
}

// WaitReady blocks until the ready register covers the mask. It is the
// interrupt-style completion backend of the simulator.
func (this *SimDevice) WaitReady(readymask uint32) {
	this.mu.Lock()
	defer this.mu.Unlock()

	for this.ctrl[RegReady]&readymask != readymask {
		this.cond.Wait()
	}
}
