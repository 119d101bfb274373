package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type State int

const (
	StateUninitialized State = iota
	StateRequesting
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRequesting:
		return "requesting"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	}
	return "unknown"
}

var (
	ErrNotGranted = errors.New("microphone not granted")
	ErrRequesting = errors.New("microphone request in progress")
)

// Controller gates the local microphone for one room session.
//
// Lifecycle: Uninitialized -> Requesting -> Granted | Denied. Granted
// starts muted; mute gates the meter and the local track, deafen and
// volume only touch playback sinks. Denied is not terminal: the caller
// may invoke RequestAccess again, there is no automatic retry.
type Controller struct {
	device     CaptureDevice
	policy     LevelPolicy
	sinks      *SinkRegistry
	onSpeaking func(bool)

	mu       sync.Mutex
	state    State
	muted    bool
	stream   CaptureStream
	meter    *LevelMeter
	bridge   *TrackBridge
	rec      *Recorder
	pumpDone chan struct{}
}

func NewController(device CaptureDevice, policy LevelPolicy, sinks *SinkRegistry, onSpeaking func(bool)) *Controller {
	if sinks == nil {
		sinks = NewSinkRegistry()
	}
	return &Controller{
		device:     device,
		policy:     policy,
		sinks:      sinks,
		onSpeaking: onSpeaking,
	}
}

// RequestAccess opens the capture device. On success the controller is
// Granted with input muted; on failure it is Denied and the error is
// returned for the caller to surface.
func (c *Controller) RequestAccess(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateRequesting:
		c.mu.Unlock()
		return ErrRequesting
	case StateGranted:
		c.mu.Unlock()
		return nil
	}
	c.state = StateRequesting
	c.mu.Unlock()

	stream, err := c.device.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateDenied
		log.Warn().Err(err).Str("module", "voice").Msg("microphone access denied")
		return fmt.Errorf("microphone access: %w", err)
	}
	c.state = StateGranted
	c.muted = true
	c.stream = stream
	c.meter = NewLevelMeter(c.policy, c.onSpeaking)
	c.pumpDone = make(chan struct{})
	go c.pump(stream)
	log.Info().Str("module", "voice").Msg("microphone granted, muted by default")
	return nil
}

func (c *Controller) pump(stream CaptureStream) {
	defer close(c.pumpDone)
	for frame := range stream.Frames() {
		c.mu.Lock()
		if c.rec != nil {
			c.rec.Write(frame)
		}
		if !c.muted {
			c.meter.Process(frame)
			if c.bridge != nil {
				c.bridge.Write(frame)
			}
		}
		c.mu.Unlock()
	}
}

// ToggleMute flips the input gate and returns the new muted state.
// Only valid once Granted. Muting clears the speaking flag at once.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateGranted {
		return false, ErrNotGranted
	}
	c.muted = !c.muted
	if c.muted {
		c.meter.Reset()
	}
	return c.muted, nil
}

// ToggleDeafen flips playback muting on every registered sink,
// including sinks registered afterwards. Local-only, independent of
// the input mute.
func (c *Controller) ToggleDeafen() bool {
	deafened := !c.sinks.Deafened()
	c.sinks.SetDeafened(deafened)
	return deafened
}

// SetVolume clamps percent to 0-100, applies it to all sinks and
// returns the effective value. Not persisted server-side.
func (c *Controller) SetVolume(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	c.sinks.SetVolume(percent)
	return percent
}

// EnableLocalTrack lazily creates the pion track the pump writes
// unmuted frames into. Safe to call before access is granted.
func (c *Controller) EnableLocalTrack() (*TrackBridge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge != nil {
		return c.bridge, nil
	}
	bridge, err := NewTrackBridge()
	if err != nil {
		return nil, err
	}
	c.bridge = bridge
	return bridge, nil
}

// StartRecording begins buffering frames for a voice note. Recording
// taps the stream before the mute gate so pronunciation practice works
// while muted in the room.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateGranted {
		return ErrNotGranted
	}
	if c.rec == nil {
		c.rec = NewRecorder()
	}
	c.rec.Start()
	return nil
}

// StopRecording ends the voice note and returns it as in-memory WAV.
func (c *Controller) StopRecording() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return nil, errors.New("not recording")
	}
	return c.rec.Stop()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Controller) Deafened() bool { return c.sinks.Deafened() }

func (c *Controller) Sinks() *SinkRegistry { return c.sinks }

// Close stops the capture stream and returns the controller to
// Uninitialized. Part of room teardown; the device may be reopened by
// a later RequestAccess.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state != StateGranted {
		c.mu.Unlock()
		return nil
	}
	stream, done := c.stream, c.pumpDone
	c.stream = nil
	c.state = StateUninitialized
	meter := c.meter
	c.mu.Unlock()

	err := stream.Close()
	<-done
	meter.Reset()
	log.Info().Str("module", "voice").Msg("capture closed")
	return err
}
