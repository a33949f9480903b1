// Package mock provides in-memory Microphone and Player implementations
// for tests and for running without an audio device.
package mock

import (
	"context"
	"sync"

	"github.com/hammamikhairi/armate/internal/domain"
)

// DefaultFormat is 16 kHz mono 16-bit PCM, the same as the real device.
var DefaultFormat = domain.PCMFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

// Compile-time interface checks.
var (
	_ domain.Microphone  = (*Microphone)(nil)
	_ domain.AudioStream = (*Stream)(nil)
	_ domain.Player      = (*Player)(nil)
	_ domain.Playback    = (*Playback)(nil)
)

// Microphone hands out Streams the test can push chunks into. Setting Err
// makes Open fail, which is how permission denial is injected.
type Microphone struct {
	mu      sync.Mutex
	err     error
	format  domain.PCMFormat
	streams []*Stream
}

// NewMicrophone creates a microphone producing DefaultFormat streams.
func NewMicrophone() *Microphone {
	return &Microphone{format: DefaultFormat}
}

// Deny makes every subsequent Open fail with err.
func (m *Microphone) Deny(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Open returns a fresh stream or the injected error.
func (m *Microphone) Open(ctx context.Context) (domain.AudioStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &Stream{ch: make(chan []byte, 1024), format: m.format}
	m.streams = append(m.streams, s)
	return s, nil
}

// Opened returns how many streams were handed out.
func (m *Microphone) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Last returns the most recently opened stream, or nil.
func (m *Microphone) Last() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// Held reports whether any opened stream has not been released.
func (m *Microphone) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.streams {
		if !s.Released() {
			return true
		}
	}
	return false
}

// Stream is a fake open capture device.
type Stream struct {
	mu       sync.Mutex
	ch       chan []byte
	format   domain.PCMFormat
	ended    bool
	released bool
}

// Push delivers one chunk. It reports false once the stream has stopped.
func (s *Stream) Push(chunk []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ch <- append([]byte(nil), chunk...)
	return true
}

// Fail simulates the device disappearing: the chunk channel closes while
// the stream is still held.
func (s *Stream) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *Stream) Chunks() <-chan []byte { return s.ch }

func (s *Stream) Format() domain.PCMFormat { return s.format }

// Close releases the fake device.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.endLocked()
	return nil
}

// Released reports whether Close was called.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Stream) endLocked() {
	if !s.ended {
		s.ended = true
		close(s.ch)
	}
}

// Player records every playback and lets the test decide when each one
// finishes.
type Player struct {
	mu    sync.Mutex
	err   error
	plays []*Playback
}

// NewPlayer creates a fake player.
func NewPlayer() *Player { return &Player{} }

// FailWith makes every subsequent Play fail with err.
func (p *Player) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Play registers a new pending playback.
func (p *Player) Play(audio []byte) (domain.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pb := &Playback{Audio: audio, done: make(chan struct{})}
	p.plays = append(p.plays, pb)
	return pb, nil
}

// Playbacks returns every playback started so far, oldest first.
func (p *Player) Playbacks() []*Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Playback(nil), p.plays...)
}

// Playback is a fake running playback.
type Playback struct {
	Audio []byte

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
	once    sync.Once
}

func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Stop interrupts the playback, which also completes it.
func (pb *Playback) Stop() {
	pb.mu.Lock()
	pb.stopped = true
	pb.mu.Unlock()
	pb.Finish()
}

// Finish signals that the audio has ended on its own.
func (pb *Playback) Finish() {
	pb.once.Do(func() { close(pb.done) })
}

// Stopped reports whether Stop was called.
func (pb *Playback) Stopped() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.stopped
}
