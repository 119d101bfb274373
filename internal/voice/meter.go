package voice

import (
	"time"
)

// LevelPolicy configures the speaking heuristic. Microphone gain
// varies widely per device, so nothing here is hardcoded at the call
// sites; the defaults reproduce the classic browser-analyser tuning
// (average amplitude above 10 on a 0-255 scale).
type LevelPolicy struct {
	// Threshold is the smoothed amplitude, on a 0-255 scale, above
	// which input counts as speech.
	Threshold float64
	// Smoothing blends each new frame level with the previous one:
	// level = Smoothing*prev + (1-Smoothing)*raw. Zero disables it.
	Smoothing float64
	// Hold keeps the speaking flag up this long after the level last
	// crossed the threshold, so word gaps do not flicker the flag.
	Hold time.Duration
}

func DefaultLevelPolicy() LevelPolicy {
	return LevelPolicy{
		Threshold: 10,
		Smoothing: 0.6,
		Hold:      250 * time.Millisecond,
	}
}

// LevelMeter turns a stream of PCM frames into speaking transitions.
// Not safe for concurrent use; the controller's pump goroutine is the
// only caller.
type LevelMeter struct {
	policy    LevelPolicy
	level     float64
	speaking  bool
	lastAbove time.Time
	now       func() time.Time
	onChange  func(speaking bool)
}

func NewLevelMeter(policy LevelPolicy, onChange func(bool)) *LevelMeter {
	return &LevelMeter{
		policy:   policy,
		now:      time.Now,
		onChange: onChange,
	}
}

// Process folds one frame into the smoothed level and fires onChange
// on speaking transitions.
func (m *LevelMeter) Process(f Frame) {
	raw := averageAmplitude(f.Samples)
	if m.policy.Smoothing > 0 {
		m.level = m.policy.Smoothing*m.level + (1-m.policy.Smoothing)*raw
	} else {
		m.level = raw
	}

	now := m.now()
	if m.level > m.policy.Threshold {
		m.lastAbove = now
	}
	speaking := m.level > m.policy.Threshold ||
		(m.speaking && now.Sub(m.lastAbove) <= m.policy.Hold)
	m.setSpeaking(speaking)
}

// Reset drops the level and the speaking flag, used when the input is
// muted so the indicator clears immediately.
func (m *LevelMeter) Reset() {
	m.level = 0
	m.setSpeaking(false)
}

func (m *LevelMeter) Level() float64 { return m.level }

func (m *LevelMeter) setSpeaking(speaking bool) {
	if speaking == m.speaking {
		return
	}
	m.speaking = speaking
	if m.onChange != nil {
		m.onChange(speaking)
	}
}

// averageAmplitude maps mean absolute sample value onto the 0-255
// scale the browser analyser exposed, keeping thresholds portable.
func averageAmplitude(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	mean := sum / float64(len(samples))
	return mean * 255.0 / 32768.0
}
