package misc

// DeviceMode selects the reconfiguration backend the daemon drives.
// Additional modes can be added as new boards are integrated.
type DeviceMode string

const (
	// DeviceModeSim runs against the built-in simulated device.
	DeviceModeSim DeviceMode = "sim"
	// DeviceModeFpgaManager drives the Linux fpga_manager framework.
	DeviceModeFpgaManager DeviceMode = "fpga_manager"
	// DeviceModeXdevcfg drives the Zynq-7000 xdevcfg character device.
	DeviceModeXdevcfg DeviceMode = "xdevcfg"
)

// DefaultDeviceMode returns the mode used when no explicit selection is made.
func DefaultDeviceMode() DeviceMode {
	return DeviceModeSim
}

// DeviceModeFromString converts an arbitrary string into a DeviceMode. When
// the provided value is unknown the bool return will be false.
func DeviceModeFromString(value string) (DeviceMode, bool) {
	switch value {
	case string(DeviceModeSim):
		return DeviceModeSim, true
	case string(DeviceModeFpgaManager):
		return DeviceModeFpgaManager, true
	case string(DeviceModeXdevcfg):
		return DeviceModeXdevcfg, true
	default:
		return "", false
	}
}
