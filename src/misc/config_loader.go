package misc

import (
	"os"
	"strconv"
)

type ConfigLoader struct{}

type runtimeConfig struct {
	numSlots       int
	repoPath       string
	firmwareLink   string
	firmwareAttr   string
	flagsAttr      string
	stateAttr      string
	xdevcfgDevice  string
	xdevcfgPartial string
	demoWorkItems  int
	demoLocalItems int
}

var globalConfig = runtimeConfig{
	numSlots:       4,
	repoPath:       "/opt/artico3",
	firmwareLink:   "/lib/firmware/a3_bitstream",
	firmwareAttr:   "/sys/class/fpga_manager/fpga0/firmware",
	flagsAttr:      "/sys/class/fpga_manager/fpga0/flags",
	stateAttr:      "/sys/class/fpga_manager/fpga0/state",
	xdevcfgDevice:  "/dev/xdevcfg",
	xdevcfgPartial: "/sys/devices/soc0/amba/f8007000.devcfg/is_partial_bitstream",
	demoWorkItems:  64,
	demoLocalItems: 16,
}

func ConfigureRuntime(parser *CommandLineParser) {
	if parser == nil {
		return
	}

	if mode, ok := DeviceModeFromString(parser.StringParameter("device_mode")); ok {
		SetRuntimeDeviceMode(mode)
	}

	globalConfig.numSlots = int(parser.IntParameter("num_slots"))
	globalConfig.repoPath = parser.StringParameter("repo_dirpath")
	globalConfig.demoWorkItems = int(parser.IntParameter("demo_gsize"))
	globalConfig.demoLocalItems = int(parser.IntParameter("demo_lsize"))

	// Environment overrides for board-specific sysfs locations.
	if v := os.Getenv("A3_FIRMWARE_LINK"); v != "" {
		globalConfig.firmwareLink = v
	}
	if v := os.Getenv("A3_XDEVCFG"); v != "" {
		globalConfig.xdevcfgDevice = v
	}
	if v := os.Getenv("A3_NSLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			globalConfig.numSlots = n
		}
	}
}

// NumSlots returns the configured slot count for the simulated device; real
// devices report their own count through the firmware info register.
func NumSlots() int {
	return globalConfig.numSlots
}

// RepoPath returns the root directory holding partial bitstream files.
func RepoPath() string {
	return globalConfig.repoPath
}

// FirmwarePaths returns the fpga_manager sysfs attribute locations.
func FirmwarePaths() (link string, firmware string, flags string, state string) {
	return globalConfig.firmwareLink, globalConfig.firmwareAttr, globalConfig.flagsAttr, globalConfig.stateAttr
}

// XdevcfgPaths returns the xdevcfg device and partial-bitstream attribute.
func XdevcfgPaths() (device string, partial string) {
	return globalConfig.xdevcfgDevice, globalConfig.xdevcfgPartial
}

// DemoGeometry returns the work sizes of the built-in demonstration
// workload.
func DemoGeometry() (gsize int, lsize int) {
	return globalConfig.demoWorkItems, globalConfig.demoLocalItems
}
