package rcfg

import (
	"fmt"
	"io"
	"os"
)

// Xdevcfg is the legacy reconfiguration backend for Zynq-7000 devices: the
// bitstream is streamed straight into the xdevcfg character device after
// raising the partial-bitstream attribute.
type Xdevcfg struct {
	// Device and PartialAttr override the default device node and sysfs
	// attribute; zero values select the defaults.
	Device      string
	PartialAttr string
}

const (
	xdevcfgDevice      = "/dev/xdevcfg"
	xdevcfgPartialAttr = "/sys/bus/platform/devices/f8007000.devcfg/is_partial_bitstream"
)

func (this *Xdevcfg) Load(path string, partial bool) error {
	device := this.Device
	if device == "" {
		device = xdevcfgDevice
	}
	attr := this.PartialAttr
	if attr == "" {
		attr = xdevcfgPartialAttr
	}

	if partial {
		if err := os.WriteFile(attr, []byte("1"), 0o644); err != nil {
			return fmt.Errorf("rcfg: enable partial reconfiguration: %w", err)
		}
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("rcfg: open bitstream: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("rcfg: open reconfiguration device: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("rcfg: stream bitstream: %w", err)
	}

	return nil
}
