package orchestration

import "fmt"

// DeviceError is a fatal audio device failure. It ends the session; there
// is no recovery path once a device is gone.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %q failed: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
