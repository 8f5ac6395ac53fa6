package runtime

import (
	"errors"
	"testing"

	"artico3/src/hw"
)

// loadConfigured places the kernel in a mixed redundancy layout across five
// slots: a TMR triplet split around a DMR slot and a simplex slot, three
// equivalent accelerators in total.
func loadConfigured(t *testing.T, rt *Runtime) {
	t.Helper()

	if err := rt.KernelCreate("k", 48, 3, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, load := range []struct {
		slot int
		tmr  uint8
		dmr  uint8
	}{
		{slot: 0, tmr: 1},
		{slot: 1, tmr: 1},
		{slot: 2, dmr: 2},
		{slot: 3},
		{slot: 4, tmr: 1},
	} {
		if err := rt.Load("k", load.slot, load.tmr, load.dmr, false); err != nil {
			t.Fatalf("unexpected error loading slot %d: %v", load.slot, err)
		}
	}
}

func TestKernelCfgRoundTripPerGroup(t *testing.T) {
	rt, _ := openSim(t, 8)
	loadConfigured(t, rt)

	naccs, err := rt.GetNaccs("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if naccs != 3 {
		t.Fatalf("expected 3 equivalent accelerators, got %d", naccs)
	}

	// One value per equivalent accelerator: TMR group first, then the DMR
	// group, then the simplex slot.
	wcfg := []hw.Data{111, 222, 333}
	if err := rt.KernelWCfg("k", 0x10, wcfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rcfgValues := make([]hw.Data, 3)
	if err := rt.KernelRCfg("k", 0x10, rcfgValues); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range wcfg {
		if rcfgValues[i] != want {
			t.Fatalf("expected %d for accelerator %d, got %d", want, i, rcfgValues[i])
		}
	}

	// The walk must leave the shadow configuration untouched.
	if got, err := rt.GetNaccs("k"); err != nil || got != 3 {
		t.Fatalf("expected configuration restored (naccs=3), got naccs=%d err=%v", got, err)
	}
}

func TestKernelCfgSizeMismatch(t *testing.T) {
	rt, _ := openSim(t, 8)
	loadConfigured(t, rt)

	if err := rt.KernelWCfg("k", 0x10, []hw.Data{1, 2}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for short cfg, got %v", err)
	}
	if err := rt.KernelRCfg("k", 0x10, make([]hw.Data, 5)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for long cfg, got %v", err)
	}
	if err := rt.KernelWCfg("nope", 0x10, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown kernel, got %v", err)
	}
}

func TestKernelCfgDualGroupSlotConfiguredOnce(t *testing.T) {
	rt, _ := openSim(t, 4)

	// Slot 2 carries both group fields. It is claimed by the TMR triplet,
	// so the kernel still counts one equivalent accelerator and its
	// single configuration word reaches every member through the TMR
	// selection.
	if err := rt.KernelCreate("k", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, load := range []struct {
		slot int
		tmr  uint8
		dmr  uint8
	}{
		{slot: 0, tmr: 1},
		{slot: 1, tmr: 1},
		{slot: 2, tmr: 1, dmr: 1},
	} {
		if err := rt.Load("k", load.slot, load.tmr, load.dmr, false); err != nil {
			t.Fatalf("unexpected error loading slot %d: %v", load.slot, err)
		}
	}

	naccs, err := rt.GetNaccs("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if naccs != 1 {
		t.Fatalf("expected 1 equivalent accelerator, got %d", naccs)
	}

	if err := rt.KernelWCfg("k", 0x10, []hw.Data{7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := make([]hw.Data, 1)
	if err := rt.KernelRCfg("k", 0x10, got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 7 {
		t.Fatalf("expected 7 from the group register, got %d", got[0])
	}
}

func TestKernelReset(t *testing.T) {
	rt, device := openSim(t, 4)

	if err := rt.KernelCreate("k", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Load("k", 0, 0, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rt.Alloc(16, "k", "in", PortIn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := rt.Execute("k", 4, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rt.Wait("k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hw.TransferDone(device, 0b1) {
		t.Fatalf("expected slot 0 ready after execution")
	}

	if err := rt.KernelReset("k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw.TransferDone(device, 0b1) {
		t.Fatalf("expected ready bit cleared after reset")
	}

	if err := rt.KernelReset("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown kernel, got %v", err)
	}
}

func TestGetNaccsUnknownKernel(t *testing.T) {
	rt, _ := openSim(t, 4)

	if _, err := rt.GetNaccs("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Created but never loaded: no slot carries the id. The missing slot
	// assignment is an argument problem, not a missing resource, and the
	// execution path reports it the same way.
	if err := rt.KernelCreate("k", 48, 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rt.GetNaccs("k"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unloaded kernel, got %v", err)
	}
	if err := rt.KernelWCfg("k", 0x10, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unloaded kernel, got %v", err)
	}
}
