// Package rcfg drives FPGA reconfiguration: full bitstreams for the static
// system and partial ones for individual slots. The bitstream byte format is
// opaque here; loaders only move files into the reconfiguration engine.
package rcfg

import (
	"fmt"
)

// Loader programs the FPGA with a bitstream file. Implementations may block
// on device I/O; callers serialize loads against execution themselves.
type Loader interface {
	Load(path string, partial bool) error
}

// PartialBitstreamPath builds the on-disk path of the partial bitstream that
// places an accelerator of the named kernel into a slot. The layout is fixed
// by the hardware build flow.
func PartialBitstreamPath(kernel string, slot int) string {
	return fmt.Sprintf("pbs/a3_%s_a3_slot_%d_partial.bin", kernel, slot)
}

// NullLoader accepts every load without touching hardware. It backs the
// simulated device, where slots have no physical configuration.
type NullLoader struct{}

func (this *NullLoader) Load(path string, partial bool) error {
	return nil
}
