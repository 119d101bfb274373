package voice

import (
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const trackClockRate = 8000

// TrackBridge feeds unmuted capture frames into a pion local audio
// track. Nothing in this client negotiates a peer connection; the
// track exists so one can be attached later without touching the
// capture path. Frames are decimated to 8 kHz and G.711 µ-law encoded
// to match the PCMU codec.
type TrackBridge struct {
	track *webrtc.TrackLocalStaticSample
}

func NewTrackBridge() (*TrackBridge, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: trackClockRate, Channels: 1},
		"audio",
		"linguaroom-mic",
	)
	if err != nil {
		return nil, fmt.Errorf("local track: %w", err)
	}
	return &TrackBridge{track: track}, nil
}

func (b *TrackBridge) Track() *webrtc.TrackLocalStaticSample { return b.track }

// Write encodes one frame onto the track. Write errors are ignored:
// with no bound reader the sample simply goes nowhere.
func (b *TrackBridge) Write(f Frame) {
	if len(f.Samples) == 0 {
		return
	}
	step := 1
	if f.Rate > trackClockRate {
		// Naive decimation; adequate for a monitoring track.
		step = f.Rate / trackClockRate
	}
	data := make([]byte, 0, len(f.Samples)/step+1)
	for i := 0; i < len(f.Samples); i += step {
		data = append(data, linearToMulaw(f.Samples[i]))
	}
	dur := time.Duration(len(data)) * time.Second / trackClockRate
	_ = b.track.WriteSample(media.Sample{Data: data, Duration: dur})
}

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// linearToMulaw implements the G.711 µ-law companding of one sample.
func linearToMulaw(s int16) byte {
	var sign byte
	x := int(s)
	if x < 0 {
		x = -x
		sign = 0x80
	}
	if x > mulawClip {
		x = mulawClip
	}
	x += mulawBias

	exponent := 7
	for mask := 0x4000; x&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((x >> (exponent + 3)) & 0x0F)
	return ^(sign | byte(exponent)<<4 | mantissa)
}
