package voice

import (
	"context"
	"errors"
)

var ErrNoCaptureDevice = errors.New("no capture device available")

// UnavailableDevice stands in on builds without a platform capture
// backend. RequestAccess lands in Denied and the room keeps working
// listen-only; embedders supply a real CaptureDevice.
type UnavailableDevice struct{}

func (UnavailableDevice) Open(context.Context) (CaptureStream, error) {
	return nil, ErrNoCaptureDevice
}
