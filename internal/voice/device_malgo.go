package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

const captureRate = 48000

// MicDevice captures the default system microphone through miniaudio:
// mono S16 at 48 kHz, matching what the meter and the track bridge
// expect from a Frame.
type MicDevice struct{}

func (MicDevice) Open(_ context.Context) (CaptureStream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug().Str("module", "voice").Msg("miniaudio: " + strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}

	s := &micStream{ctx: mctx, frames: make(chan Frame, 8)}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = captureRate
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: s.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	log.Info().Str("module", "voice").Int("rate", captureRate).Msg("capture device started")
	return s, nil
}

type micStream struct {
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	frames chan Frame
	once   sync.Once
}

func (s *micStream) Frames() <-chan Frame { return s.frames }

// onData runs on the audio thread. A full channel drops the frame
// rather than blocking capture.
func (s *micStream) onData(_, input []byte, frameCount uint32) {
	frame := Frame{Samples: pcm16FromBytes(input, int(frameCount)), Rate: captureRate}
	select {
	case s.frames <- frame:
	default:
	}
}

func (s *micStream) Close() error {
	s.once.Do(func() {
		// Uninit stops the device synchronously, no callback runs
		// after it returns.
		s.dev.Uninit()
		_ = s.ctx.Uninit()
		s.ctx.Free()
		close(s.frames)
	})
	return nil
}

// pcm16FromBytes decodes little-endian S16 mono bytes, truncating to
// whatever the buffer actually holds.
func pcm16FromBytes(b []byte, frameCount int) []int16 {
	if n := len(b) / 2; frameCount > n {
		frameCount = n
	}
	if frameCount < 0 {
		frameCount = 0
	}
	out := make([]int16, frameCount)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}
