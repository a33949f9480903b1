package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/wav"
)

func samples(s ...int16) []byte {
	b := make([]byte, 2*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func unpack(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestDecode(t *testing.T) {
	pcm := samples(1, -1, 2, -2)

	t.Run("wav", func(t *testing.T) {
		clip := wav.Encode(domain.PCMFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}, pcm)
		got, f, err := decode(clip)
		require.NoError(t, err)
		assert.Equal(t, pcmFormat{rate: 24000, channels: 1}, f)
		assert.Equal(t, pcm, got)
	})

	tests := []struct {
		name  string
		audio []byte
	}{
		{"empty", nil},
		{"8-bit wav", wav.Encode(domain.PCMFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 8}, []byte{1, 2, 3, 4})},
		{"zero sample rate", wav.Encode(domain.PCMFormat{SampleRate: 0, Channels: 1, BitsPerSample: 16}, pcm)},
		{"six channels", wav.Encode(domain.PCMFormat{SampleRate: 24000, Channels: 6, BitsPerSample: 16}, pcm)},
		{"huge sample rate", wav.Encode(domain.PCMFormat{SampleRate: 1 << 30, Channels: 2, BitsPerSample: 16}, pcm)},
		{"garbage", bytes.Repeat([]byte("not audio "), 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decode(tt.audio)
			assert.Error(t, err)
		})
	}
}

func TestConvertIdentity(t *testing.T) {
	pcm := samples(1, 2, 3)
	f := pcmFormat{rate: 24000, channels: 1}
	assert.Equal(t, pcm, convert(pcm, f, f))
}

func TestConvertChannels(t *testing.T) {
	mono := pcmFormat{rate: 24000, channels: 1}
	stereo := pcmFormat{rate: 24000, channels: 2}

	assert.Equal(t, []int16{5, 5, -7, -7}, unpack(convert(samples(5, -7), mono, stereo)))
	assert.Equal(t, []int16{150, -5}, unpack(convert(samples(100, 200, -10, 0), stereo, mono)))
}

func TestConvertRate(t *testing.T) {
	from := pcmFormat{rate: 48000, channels: 1}
	to := pcmFormat{rate: 24000, channels: 1}
	assert.Equal(t, []int16{0, 200, 400}, unpack(convert(samples(0, 100, 200, 300, 400, 500), from, to)))

	// Upsampling interpolates between neighbours.
	up := unpack(convert(samples(0, 100), to, from))
	assert.Equal(t, []int16{0, 50, 100, 100}, up)
}

func TestConvertStereoMp3ToMonoDevice(t *testing.T) {
	mp3 := pcmFormat{rate: 44100, channels: 2}
	device := pcmFormat{rate: 22050, channels: 1}

	// One second of stereo becomes one second of mono at the device rate.
	pcm := make([]byte, 44100*2*2)
	out := convert(pcm, mp3, device)
	assert.Len(t, out, 22050*2)
}

func TestConvertDropsPartialFrame(t *testing.T) {
	stereo := pcmFormat{rate: 24000, channels: 2}
	mono := pcmFormat{rate: 24000, channels: 1}
	pcm := append(samples(10, 20), 0xff) // odd trailing byte
	assert.Equal(t, []int16{15}, unpack(convert(pcm, stereo, mono)))
}
