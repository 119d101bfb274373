package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWriteIgnoredWhenInactive(t *testing.T) {
	r := NewRecorder()
	r.Write(frameOf(100, 10))

	r.Start()
	r.Write(frameOf(100, 10))
	wav, err := r.Stop()
	require.NoError(t, err)
	assert.Len(t, wav, 44+10*2)
}

func TestRecorderStopEmpty(t *testing.T) {
	r := NewRecorder()
	r.Start()
	_, err := r.Stop()
	assert.Error(t, err)
}

func TestRecorderRestartDropsOldSamples(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.Write(frameOf(100, 100))
	_, err := r.Stop()
	require.NoError(t, err)

	r.Start()
	r.Write(frameOf(100, 10))
	wav, err := r.Stop()
	require.NoError(t, err)
	assert.Len(t, wav, 44+10*2)
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := encodeWAV([]int16{1, 2, 3}, 16000)

	require.Len(t, wav, 44+6)
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Equal(t, uint32(36+6), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestEncodeWAVRateFallback(t *testing.T) {
	wav := encodeWAV([]int16{0}, 0)
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[24:28]))
}
