package runtime

import (
	"errors"
	"fmt"
	"testing"

	"artico3/src/hw"
	"artico3/src/rcfg"
)

// recordingLoader counts reconfigurations and remembers the last bitstream
// path it was asked for.
type recordingLoader struct {
	calls    int
	lastPath string
	err      error
}

func (this *recordingLoader) Load(path string, partial bool) error {
	this.calls++
	this.lastPath = path
	return this.err
}

func openSimWithLoader(t *testing.T, nslots int, loader rcfg.Loader) (*Runtime, *hw.SimDevice) {
	t.Helper()

	device := hw.NewSimDevice(nslots)
	rt, err := Open(Config{
		Registers: device,
		Engine:    device,
		Loader:    loader,
		Waiter:    device,
	})
	if err != nil {
		t.Fatalf("unexpected error opening runtime: %v", err)
	}
	return rt, device
}

func TestLoadReconfiguresOnlyWhenNeeded(t *testing.T) {
	loader := new(recordingLoader)
	rt, _ := openSimWithLoader(t, 4, loader)

	if err := rt.KernelCreate("matmul", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.KernelCreate("fir", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := rt.Load("matmul", 2, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected 1 reconfiguration, got %d", loader.calls)
	}
	if want := "pbs/a3_matmul_a3_slot_2_partial.bin"; loader.lastPath != want {
		t.Fatalf("expected bitstream path %q, got %q", want, loader.lastPath)
	}

	// Same kernel, same slot: only the group assignment changes.
	if err := rt.Load("matmul", 2, 0, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected no new reconfiguration, got %d", loader.calls)
	}
	if rt.shuffler.Slots[2].DMR != 1 {
		t.Fatalf("expected dmr group 1 on slot 2, got %d", rt.shuffler.Slots[2].DMR)
	}

	// force always reconfigures.
	if err := rt.Load("matmul", 2, 0, 0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected 2 reconfigurations after force, got %d", loader.calls)
	}

	// A different kernel displaces the loaded one.
	if err := rt.Load("fir", 2, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.calls != 3 {
		t.Fatalf("expected 3 reconfigurations after displacement, got %d", loader.calls)
	}

	if err := rt.Load("matmul", 9, 0, 0, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for slot out of range, got %v", err)
	}
	if err := rt.Load("nope", 0, 0, 0, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown kernel, got %v", err)
	}
}

func TestLoadFailureLeavesSlotLoading(t *testing.T) {
	loader := &recordingLoader{err: fmt.Errorf("bitstream not found")}
	rt, _ := openSimWithLoader(t, 4, loader)

	if err := rt.KernelCreate("k", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := rt.Load("k", 1, 0, 0, false)
	if !errors.Is(err, ErrSlotFailed) {
		t.Fatalf("expected ErrSlotFailed, got %v", err)
	}
	if rt.shuffler.Slots[1].State != hw.SlotLoading {
		t.Fatalf("expected slot 1 stuck loading, got state %d", rt.shuffler.Slots[1].State)
	}
	if rt.shuffler.IDReg != 0 {
		t.Fatalf("expected no id assignment after failed load, got %#x", rt.shuffler.IDReg)
	}

	// A later successful load recovers the slot.
	loader.err = nil
	if err := rt.Load("k", 1, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.shuffler.Slots[1].State != hw.SlotIdle {
		t.Fatalf("expected slot 1 idle after recovery, got state %d", rt.shuffler.Slots[1].State)
	}
}

func TestUnloadClearsSlot(t *testing.T) {
	rt, _ := openSim(t, 4)

	if err := rt.KernelCreate("k", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Load("k", 0, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Unload(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.shuffler.Slots[0].State != hw.SlotEmpty {
		t.Fatalf("expected slot 0 empty, got state %d", rt.shuffler.Slots[0].State)
	}
	if err := rt.Unload(7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for slot out of range, got %v", err)
	}
}
