package hw

// TransferEngine performs bulk copies between host scratch regions and
// accelerator local memories. The production implementation fronts a DMA
// proxy device; the simulator ships an in-memory one.
//
// Offsets encode the kernel ID in the upper half word (id << 16) plus a byte
// offset into each accelerator's local memory, mirroring the data-plane
// address layout. Both transfer directions block until the copy completed.
type TransferEngine interface {
	// Alloc requests a scratch region of the given size in words.
	Alloc(words int) ([]Data, error)

	// MemToHW submits a host-to-accelerator transfer. A nil region with a
	// valid offset is a zero-length transfer used to prime register-based
	// command sequences.
	MemToHW(mem []Data, hwOffset uint32) error

	// HWToMem submits an accelerator-to-host transfer.
	HWToMem(mem []Data, hwOffset uint32) error

	// Release returns a scratch region obtained from Alloc.
	Release(mem []Data)
}

// CompletionWaiter blocks until the ready register covers the given mask.
// It is the interrupt-driven alternative to busy-polling TransferDone; round
// scheduling accepts either backend.
type CompletionWaiter interface {
	WaitReady(readymask uint32)
}
