// Package audio binds the capture and playback ports to the platform:
// miniaudio (malgo) for the microphone and oto for the speaker.
package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Microphone  = (*Microphone)(nil)
	_ domain.AudioStream = (*micStream)(nil)
)

// Microphone opens the default capture device through miniaudio.
type Microphone struct {
	log *logger.Logger
}

// NewMicrophone creates a microphone bound to the default input device.
func NewMicrophone(log *logger.Logger) *Microphone {
	return &Microphone{log: log}
}

// Open acquires the capture device and starts streaming. Any failure to
// obtain the device is reported as permission denied: from the user's side
// a blocked, missing or refused microphone all look the same.
func (m *Microphone) Open(ctx context.Context) (domain.AudioStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		m.log.Debug("malgo: %s", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init audio context: %v", domain.ErrPermissionDenied, err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = CaptureSampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = CaptureChannels
	devCfg.Alsa.NoMMap = 1

	s := &micStream{
		ch:  make(chan []byte, chunkQueueCap),
		log: m.log,
		ctx: mCtx,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			// raw is reused by miniaudio after the callback returns.
			s.push(append([]byte(nil), raw...))
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		_ = mCtx.Uninit()
		mCtx.Free()
		return nil, fmt.Errorf("%w: open capture device: %v", domain.ErrPermissionDenied, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: start capture device: %v", domain.ErrPermissionDenied, err)
	}

	m.log.Debug("microphone: capture device started (rate=%d)", CaptureSampleRate)
	return s, nil
}

// micStream is one open capture device.
type micStream struct {
	log    *logger.Logger
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	ch     chan []byte
	closed bool
	drops  atomic.Int64
}

func (s *micStream) push(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- chunk:
	default:
		s.drops.Add(1)
	}
}

func (s *micStream) Chunks() <-chan []byte { return s.ch }

func (s *micStream) Format() domain.PCMFormat { return CaptureFormat }

// Close stops the device and frees the audio context. Idempotent.
func (s *micStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
	}
	err := s.ctx.Uninit()
	s.ctx.Free()

	if n := s.drops.Load(); n > 0 {
		s.log.Warn("microphone: dropped %d chunks (consumer too slow)", n)
	}
	s.log.Debug("microphone: capture device released")
	return err
}
