package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
)

// Recorder buffers capture frames for a pronunciation voice note. The
// whole recording stays in memory; Stop renders it as a WAV blob for
// the upload endpoint and nothing is written to disk.
type Recorder struct {
	mu      sync.Mutex
	active  bool
	rate    int
	samples []int16
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Start() {
	r.mu.Lock()
	r.active = true
	r.rate = 0
	r.samples = r.samples[:0]
	r.mu.Unlock()
}

// Write appends a frame while active; a no-op otherwise, so the pump
// can call it unconditionally.
func (r *Recorder) Write(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if r.rate == 0 {
		r.rate = f.Rate
	}
	r.samples = append(r.samples, f.Samples...)
}

// Stop ends the recording and encodes it as 16-bit mono PCM WAV.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, errors.New("recorder not started")
	}
	r.active = false
	if len(r.samples) == 0 {
		return nil, errors.New("empty recording")
	}
	return encodeWAV(r.samples, r.rate), nil
}

func encodeWAV(samples []int16, rate int) []byte {
	if rate <= 0 {
		rate = 48000
	}
	dataLen := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))      // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))     // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
