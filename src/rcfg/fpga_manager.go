package rcfg

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Default sysfs entry points of the Linux fpga_manager framework, assuming a
// single device called fpga0.
const (
	firmwareLink    = "/lib/firmware/a3_bitstream"
	firmwareAttr    = "/sys/class/fpga_manager/fpga0/firmware"
	flagsAttr       = "/sys/class/fpga_manager/fpga0/flags"
	stateAttr       = "/sys/class/fpga_manager/fpga0/state"
	outputOperating = "operating"
)

// FPGAManager loads bitstreams through the Linux fpga_manager framework:
// link the file into /lib/firmware, raise the partial flag if needed, write
// the firmware name to trigger programming and verify the resulting state.
type FPGAManager struct {
	// FirmwareLink, Firmware, Flags and State override the default sysfs
	// paths; zero values select the defaults. Tests point them at a
	// scratch directory.
	FirmwareLink string
	Firmware     string
	Flags        string
	State        string
}

func (this *FPGAManager) paths() (link, firmware, flags, state string) {
	link = this.FirmwareLink
	if link == "" {
		link = firmwareLink
	}
	firmware = this.Firmware
	if firmware == "" {
		firmware = firmwareAttr
	}
	flags = this.Flags
	if flags == "" {
		flags = flagsAttr
	}
	state = this.State
	if state == "" {
		state = stateAttr
	}
	return link, firmware, flags, state
}

func (this *FPGAManager) Load(path string, partial bool) error {
	link, firmware, flags, state := this.paths()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("rcfg: resolve bitstream path: %w", err)
	}

	// Stale links survive failed loads; drop any leftover before linking.
	os.Remove(link)
	if err := os.Symlink(abs, link); err != nil {
		return fmt.Errorf("rcfg: stage bitstream in firmware dir: %w", err)
	}
	defer os.Remove(link)

	if partial {
		if err := os.WriteFile(flags, []byte("1"), 0o644); err != nil {
			return fmt.Errorf("rcfg: enable partial reconfiguration: %w", err)
		}
	}

	if err := os.WriteFile(firmware, []byte(filepath.Base(link)), 0o644); err != nil {
		return fmt.Errorf("rcfg: write firmware name: %w", err)
	}

	if partial {
		if err := os.WriteFile(flags, []byte("0"), 0o644); err != nil {
			return fmt.Errorf("rcfg: disable partial reconfiguration: %w", err)
		}
	}

	raw, err := os.ReadFile(state)
	if err != nil {
		return fmt.Errorf("rcfg: read fpga_manager state: %w", err)
	}
	got, _, _ := bytes.Cut(raw, []byte("\n"))
	if string(got) != outputOperating {
		return fmt.Errorf("rcfg: fpga_manager state %q after load", got)
	}

	return nil
}
