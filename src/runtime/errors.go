package runtime

import "errors"

// Error kinds returned by runtime operations. Callers test with errors.Is;
// every operation propagates these unchanged up to the daemon boundary,
// where they map onto wire status codes.
var (
	// ErrNotFound reports an unknown kernel or port name, or a slot index
	// outside the range reported by the static system.
	ErrNotFound = errors.New("not found")

	// ErrBusy reports a full kernel list, a port direction with no free
	// memory bank, or a kernel that is already executing.
	ErrBusy = errors.New("busy")

	// ErrNoMemory reports a failed scratch or buffer allocation.
	ErrNoMemory = errors.New("out of memory")

	// ErrInvalidArgument reports malformed work geometry or a slot
	// assignment that yields zero equivalent accelerators.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSlotFailed reports a reconfiguration loader failure. The affected
	// slot stays in the loading state and is unusable until a later load
	// succeeds; there is no automatic recovery.
	ErrSlotFailed = errors.New("slot reconfiguration failed")
)
