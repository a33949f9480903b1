// Package capture owns the microphone recording lifecycle: it opens the
// capture device on request, buffers raw chunks in arrival order, and on
// stop hands one WAV payload to its single consumer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/wav"
)

// State is the recording session state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ErrStreamEnded is reported to the sink when the device stops delivering
// audio while a recording is still in progress.
var ErrStreamEnded = errors.New("capture stream ended unexpectedly")

// Option configures the Controller.
type Option func(*Controller)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the microphone state machine:
//
//	Idle -> Start (granted) -> Recording -> Stop -> Finalizing -> Idle
//
// The device is held only while Recording or Finalizing and is released
// on every exit path.
type Controller struct {
	mic  domain.Microphone
	sink domain.PayloadSink
	log  *logger.Logger
	now  func() time.Time

	mu        sync.Mutex
	state     State
	opening   bool
	gen       uint64
	stream    domain.AudioStream
	chunks    [][]byte
	startedAt time.Time
	pumpDone  chan struct{}
}

// New creates an idle capture controller that delivers finished
// recordings to sink.
func New(mic domain.Microphone, sink domain.PayloadSink, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		mic:  mic,
		sink: sink,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current recording state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests the microphone and begins buffering. A redundant start
// (already recording, finalizing, or waiting on the device) is ignored.
// Refusal leaves the controller Idle and returns an error wrapping
// domain.ErrPermissionDenied.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || c.opening {
		st := c.state
		c.mu.Unlock()
		c.log.Debug("capture: ignoring start while %s", st)
		return nil
	}
	c.opening = true
	c.mu.Unlock()

	stream, err := c.mic.Open(ctx)

	c.mu.Lock()
	c.opening = false
	if err != nil {
		c.mu.Unlock()
		if !errors.Is(err, domain.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		c.log.Warn("capture: microphone unavailable: %v", err)
		return err
	}

	c.gen++
	gen := c.gen
	done := make(chan struct{})
	c.state = StateRecording
	c.stream = stream
	c.chunks = nil
	c.startedAt = c.now()
	c.pumpDone = done
	c.mu.Unlock()

	c.log.Info("capture: recording (rate=%d, channels=%d)", stream.Format().SampleRate, stream.Format().Channels)
	go c.pump(stream, gen, done)
	return nil
}

// pump copies chunks off the device until its channel closes. If that
// happens while still Recording the device gave out under us: release it
// and report the failure instead of a payload.
func (c *Controller) pump(stream domain.AudioStream, gen uint64, done chan struct{}) {
	for chunk := range stream.Chunks() {
		c.mu.Lock()
		if c.gen == gen && c.state != StateIdle {
			c.chunks = append(c.chunks, chunk)
		}
		c.mu.Unlock()
	}
	close(done)

	c.mu.Lock()
	if c.gen != gen || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		c.log.Warn("capture: closing device: %v", err)
	}
	c.log.Error("capture: %v", ErrStreamEnded)
	c.sink.HandleCaptureError(ErrStreamEnded)
}

// Stop ends the recording, releases the device, and emits the payload to
// the sink. It fails with domain.ErrNotRecording outside Recording.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return domain.ErrNotRecording
	}
	c.state = StateFinalizing
	stream := c.stream
	done := c.pumpDone
	startedAt := c.startedAt
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		c.log.Warn("capture: closing device: %v", err)
	}
	<-done

	c.mu.Lock()
	chunks := c.chunks
	c.resetLocked()
	c.mu.Unlock()

	format := stream.Format()
	pcm := concat(chunks)
	payload := domain.AudioPayload{
		Data:       wav.Encode(format, pcm),
		MIMEType:   domain.MIMETypeWAV,
		Duration:   pcmDuration(format, len(pcm)),
		CapturedAt: startedAt,
	}

	c.log.Info("capture: finalized %d chunks, %d bytes (%s)", len(chunks), len(pcm), payload.Duration)
	c.sink.HandlePayload(payload)
	return nil
}

// Abandon drops an in-progress recording without emitting anything. The
// device is released. Safe to call in any state.
func (c *Controller) Abandon() {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	c.state = StateFinalizing
	stream := c.stream
	done := c.pumpDone
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		c.log.Warn("capture: closing device: %v", err)
	}
	<-done

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.log.Info("capture: recording abandoned")
}

// resetLocked returns to Idle and forgets the device. Must be called with
// c.mu held.
func (c *Controller) resetLocked() {
	c.state = StateIdle
	c.stream = nil
	c.chunks = nil
	c.pumpDone = nil
}

func concat(chunks [][]byte) []byte {
	n := 0
	for _, ch := range chunks {
		n += len(ch)
	}
	out := make([]byte, 0, n)
	for _, ch := range chunks {
		out = append(out, ch...)
	}
	return out
}

func pcmDuration(f domain.PCMFormat, n int) time.Duration {
	bytesPerSec := f.SampleRate * f.Channels * f.BitsPerSample / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSec)
}
