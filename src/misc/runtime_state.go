package misc

import "sync"

var (
	runtimeDeviceMode     = DefaultDeviceMode()
	runtimeDeviceModeLock sync.RWMutex
)

// SetRuntimeDeviceMode updates the global runtime device mode.
func SetRuntimeDeviceMode(mode DeviceMode) {
	runtimeDeviceModeLock.Lock()
	defer runtimeDeviceModeLock.Unlock()

	runtimeDeviceMode = mode
}

// RuntimeDeviceMode returns the currently configured device mode.
func RuntimeDeviceMode() DeviceMode {
	runtimeDeviceModeLock.RLock()
	defer runtimeDeviceModeLock.RUnlock()

	return runtimeDeviceMode
}
