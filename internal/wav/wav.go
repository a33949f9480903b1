// Package wav reads and writes the RIFF/WAVE container around raw PCM.
package wav

import (
	"encoding/binary"
	"errors"

	"github.com/hammamikhairi/armate/internal/domain"
)

const headerSize = 44

// Encode wraps little-endian PCM samples in a canonical 44-byte WAV header.
func Encode(f domain.PCMFormat, pcm []byte) []byte {
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	out := make([]byte, headerSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// Decode walks the RIFF chunks and returns the raw PCM data together with
// the format declared in the fmt chunk.
func Decode(b []byte) ([]byte, domain.PCMFormat, error) {
	var f domain.PCMFormat
	if len(b) < headerSize {
		return nil, f, errors.New("wav data too short")
	}
	if !IsWAV(b) {
		return nil, f, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos+8 <= len(b) {
		chunkID := string(b[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		start := pos + 8

		switch chunkID {
		case "fmt ":
			if start+16 > len(b) {
				return nil, f, errors.New("truncated fmt chunk")
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[start+2 : start+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[start+4 : start+8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(b[start+14 : start+16]))
		case "data":
			end := start + chunkSize
			if end > len(b) {
				end = len(b)
			}
			if f.SampleRate == 0 {
				return nil, f, errors.New("data chunk before fmt chunk")
			}
			return b[start:end], f, nil
		}

		pos = start + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, f, errors.New("data chunk not found in WAV")
}
