package runtime

import (
	"fmt"

	"artico3/src/hw"
	"artico3/src/misc"
)

// MaxKernels bounds the kernel list: IDs occupy one 4-bit field per slot,
// with 0 reserved to mean "no kernel".
const MaxKernels = 15

// PortDir tags the data direction of a kernel port.
type PortDir int

const (
	PortConst PortDir = iota // constant input, pushed once per load cycle
	PortIn                   // streaming input
	PortOut                  // streaming output
	PortInOut                // bidirectional
)

// Port is a named host-side buffer bound to one local memory bank of a
// kernel. The buffer is owned by the runtime; Data is handed to the caller
// for filling and draining.
type Port struct {
	Name string
	Size int // bytes
	Data []hw.Data
}

// Words returns the port size in 32-bit words.
func (this *Port) Words() int {
	return this.Size / hw.WordBytes
}

// Kernel is one accelerator type: a name, a numeric ID and the geometry of
// its local memory, plus the per-direction port tables. Each direction array
// has one entry per memory bank; the occupied prefix is kept sorted by port
// name, and that ordering is what assigns physical bank indices.
type Kernel struct {
	Name     string
	ID       uint8
	MemBytes int
	MemBanks int
	Regs     int

	// CLoaded records whether the constant ports already reached the
	// hardware; constants travel only on the first transfer after a load.
	CLoaded bool

	Consts  []*Port
	Inputs  []*Port
	Outputs []*Port
	InOuts  []*Port
}

// WordsPerBank returns the capacity of one local memory bank in words.
func (this *Kernel) WordsPerBank() int {
	return this.MemBytes / this.MemBanks / hw.WordBytes
}

func (this *Kernel) banks(dir PortDir) []*Port {
	switch dir {
	case PortConst:
		return this.Consts
	case PortIn:
		return this.Inputs
	case PortOut:
		return this.Outputs
	default:
		return this.InOuts
	}
}

// insertPort places a port into the first empty bank, then restores name
// order over the occupied prefix. The sort is a stable bubble pass; ties
// keep insertion order. Bank indices are externally observable (they select
// physical memory banks), so this procedure must not change.
func insertPort(banks []*Port, port *Port) error {
	p := 0
	for p < len(banks) && banks[p] != nil {
		p++
	}
	if p == len(banks) {
		return fmt.Errorf("%w: no empty bank for port %q", ErrBusy, port.Name)
	}
	banks[p] = port

	for i := 0; i < len(banks)-1; i++ {
		for j := 0; j < len(banks)-1-i; j++ {
			if banks[j+1] == nil {
				break
			}
			if banks[j].Name > banks[j+1].Name {
				banks[j], banks[j+1] = banks[j+1], banks[j]
			}
		}
	}

	return nil
}

// occupied collects the non-empty banks of a direction array in bank order.
func occupied(banks []*Port) []*Port {
	var ports []*Port
	for _, port := range banks {
		if port != nil {
			ports = append(ports, port)
		}
	}
	return ports
}

// KernelCreate registers a new kernel and assigns it the first free ID.
// The local memory size is rounded up so every bank holds a whole number of
// 32-bit words.
func (this *Runtime) KernelCreate(name string, membytes int, membanks int, regs int) error {
	if membanks <= 0 || membytes <= 0 {
		return fmt.Errorf("%w: kernel %q needs positive memory geometry", ErrInvalidArgument, name)
	}

	this.guard.lock()
	defer this.guard.unlock()

	for _, kernel := range this.kernels {
		if kernel != nil && kernel.Name == name {
			return fmt.Errorf("%w: kernel %q already exists", ErrBusy, name)
		}
	}

	index := 0
	for index < MaxKernels && this.kernels[index] != nil {
		index++
	}
	if index == MaxKernels {
		return fmt.Errorf("%w: kernel list is full", ErrBusy)
	}

	bankBytes := membanks * hw.WordBytes
	rounded := (membytes + bankBytes - 1) / bankBytes * bankBytes

	kernel := &Kernel{
		Name:     name,
		ID:       uint8(index + 1),
		MemBytes: rounded,
		MemBanks: membanks,
		Regs:     regs,
		Consts:   make([]*Port, membanks),
		Inputs:   make([]*Port, membanks),
		Outputs:  make([]*Port, membanks),
		InOuts:   make([]*Port, membanks),
	}
	this.kernels[index] = kernel
	misc.Debugf("created kernel (name=%s,id=%x,membytes=%d,membanks=%d,regs=%d)", name, kernel.ID, rounded, membanks, regs)

	return nil
}

// KernelRelease removes a kernel, frees its buffers and clears every slot
// still carrying it, shadow register fields included. Callers must not
// release a kernel with an in-flight execution.
func (this *Runtime) KernelRelease(name string) error {
	this.guard.lock()
	defer this.guard.unlock()

	index, kernel, err := this.kernelByName(name)
	if err != nil {
		return err
	}

	this.kernels[index] = nil
	for slot := 0; slot < this.shuffler.NSlots; slot++ {
		if this.shuffler.Slots[slot].State != hw.SlotEmpty && this.shuffler.Slots[slot].Kernel == kernel.ID {
			this.shuffler.ClearSlot(slot)
		}
	}
	misc.Debugf("released kernel (name=%s)", name)

	return nil
}

// Alloc creates a named buffer bound to one bank of the kernel's local
// memory and returns the host region the caller fills or drains. Allocating
// a constant port forces constants to be pushed again on the next transfer.
func (this *Runtime) Alloc(size int, kname string, pname string, dir PortDir) ([]hw.Data, error) {
	this.guard.lock()
	defer this.guard.unlock()

	_, kernel, err := this.kernelByName(kname)
	if err != nil {
		return nil, err
	}

	port := &Port{
		Name: pname,
		Size: size,
		Data: make([]hw.Data, (size+hw.WordBytes-1)/hw.WordBytes),
	}
	if err := insertPort(kernel.banks(dir), port); err != nil {
		return nil, err
	}
	if dir == PortConst {
		kernel.CLoaded = false
	}

	return port.Data, nil
}

// Free releases a named buffer. The vacated bank becomes the insertion
// point of the next allocation in the same direction.
func (this *Runtime) Free(kname string, pname string) error {
	this.guard.lock()
	defer this.guard.unlock()

	_, kernel, err := this.kernelByName(kname)
	if err != nil {
		return err
	}

	for _, banks := range [][]*Port{kernel.Consts, kernel.Inputs, kernel.Outputs, kernel.InOuts} {
		for p, port := range banks {
			if port != nil && port.Name == pname {
				banks[p] = nil
				return nil
			}
		}
	}

	return fmt.Errorf("%w: no port named %q in kernel %q", ErrNotFound, pname, kname)
}

// kernelByName resolves a kernel name to its list index and entry. Callers
// hold the runtime lock.
func (this *Runtime) kernelByName(name string) (int, *Kernel, error) {
	for index, kernel := range this.kernels {
		if kernel != nil && kernel.Name == name {
			return index, kernel, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: no kernel named %q", ErrNotFound, name)
}
