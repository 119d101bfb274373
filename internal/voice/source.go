// Package voice owns the local microphone for one room session: the
// permission/mute state machine, the speaking level meter, playback
// sinks and the in-memory voice note recorder. No media leaves the
// machine except through the optional local track bridge, which a
// future peer connection may attach to; no negotiation happens here.
package voice

import "context"

// Frame is one block of mono PCM16 samples from the capture device.
type Frame struct {
	Samples []int16
	Rate    int
}

// CaptureDevice abstracts the platform microphone API. Opening may
// block on a permission prompt; a denied prompt is an Open error.
type CaptureDevice interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream delivers frames until closed. The stream is owned
// exclusively by one Controller for the life of a room session.
type CaptureStream interface {
	Frames() <-chan Frame
	Close() error
}
