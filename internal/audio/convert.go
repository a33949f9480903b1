package audio

import (
	"encoding/binary"
	"fmt"
)

// pcmFormat is a 16-bit little-endian PCM layout.
type pcmFormat struct {
	rate     int
	channels int
}

func (f pcmFormat) validate() error {
	if f.channels != 1 && f.channels != 2 {
		return fmt.Errorf("unsupported channel count %d", f.channels)
	}
	if f.rate < minSampleRate || f.rate > maxSampleRate {
		return fmt.Errorf("unsupported sample rate %d", f.rate)
	}
	return nil
}

// convert remixes and resamples pcm from one layout to another. Channels
// are averaged down to mono or duplicated up to stereo; the rate is
// changed by linear interpolation. A trailing partial frame is dropped.
func convert(pcm []byte, from, to pcmFormat) []byte {
	if from == to {
		return pcm
	}

	frames := len(pcm) / 2 / from.channels
	in := make([]int16, frames*from.channels)
	for i := range in {
		in[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}

	mixed := remix(in, frames, from.channels, to.channels)
	out := resample(mixed, frames, to.channels, from.rate, to.rate)

	b := make([]byte, 2*len(out))
	for i, s := range out {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func remix(in []int16, frames, from, to int) []int16 {
	if from == to {
		return in
	}
	out := make([]int16, frames*to)
	for i := 0; i < frames; i++ {
		src := in[i*from : (i+1)*from]
		if to == 1 {
			sum := 0
			for _, s := range src {
				sum += int(s)
			}
			out[i] = int16(sum / from)
			continue
		}
		for c := 0; c < to; c++ {
			out[i*to+c] = src[min(c, from-1)]
		}
	}
	return out
}

func resample(in []int16, frames, channels, from, to int) []int16 {
	if from == to || frames == 0 {
		return in
	}
	n := int(int64(frames) * int64(to) / int64(from))
	out := make([]int16, n*channels)
	step := float64(from) / float64(to)
	for j := 0; j < n; j++ {
		pos := float64(j) * step
		i := min(int(pos), frames-1)
		frac := pos - float64(i)
		next := min(i+1, frames-1)
		for c := 0; c < channels; c++ {
			a := float64(in[i*channels+c])
			b := float64(in[next*channels+c])
			out[j*channels+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}
