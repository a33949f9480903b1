package audio

import "github.com/hammamikhairi/armate/internal/domain"

// Capture parameters. The conversation service transcribes speech, so 16 kHz
// mono is plenty and keeps uploads small.
const (
	CaptureSampleRate = 16000
	CaptureChannels   = 1
	CaptureBitDepth   = 16
)

// CaptureFormat is the PCM layout produced by NewMicrophone.
var CaptureFormat = domain.PCMFormat{
	SampleRate:    CaptureSampleRate,
	Channels:      CaptureChannels,
	BitsPerSample: CaptureBitDepth,
}

// chunkQueueCap bounds how many device callbacks may be buffered before
// chunks are dropped.
const chunkQueueCap = 256
