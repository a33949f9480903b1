package audio

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/armate/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.Player     = (*SilentPlayer)(nil)
	_ domain.Microphone = (*SilentMicrophone)(nil)
)

// SilentPlaybackDuration is how long a SilentPlayer "plays" each reply.
const SilentPlaybackDuration = 1500 * time.Millisecond

// SilentPlayer pretends to play every reply for a fixed duration. Used
// with -no-audio so the avatar still cycles through its states.
type SilentPlayer struct {
	duration time.Duration
}

// NewSilentPlayer creates a player whose playbacks last d.
func NewSilentPlayer(d time.Duration) *SilentPlayer {
	return &SilentPlayer{duration: d}
}

func (p *SilentPlayer) Play(audio []byte) (domain.Playback, error) {
	pb := &timedPlayback{done: make(chan struct{})}
	pb.timer = time.AfterFunc(p.duration, pb.finish)
	return pb, nil
}

type timedPlayback struct {
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

func (pb *timedPlayback) Done() <-chan struct{} { return pb.done }

func (pb *timedPlayback) Stop() {
	pb.timer.Stop()
	pb.finish()
}

func (pb *timedPlayback) finish() {
	pb.once.Do(func() { close(pb.done) })
}

// SilentMicrophone streams digital silence in 100 ms chunks.
type SilentMicrophone struct{}

func (SilentMicrophone) Open(ctx context.Context) (domain.AudioStream, error) {
	s := &silentStream{ch: make(chan []byte, chunkQueueCap), stop: make(chan struct{})}
	go s.run()
	return s, nil
}

type silentStream struct {
	ch   chan []byte
	stop chan struct{}
	once sync.Once
}

func (s *silentStream) run() {
	defer close(s.ch)
	bytesPer100ms := CaptureSampleRate * CaptureChannels * CaptureBitDepth / 8 / 10
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			select {
			case s.ch <- make([]byte, bytesPer100ms):
			case <-s.stop:
				return
			}
		}
	}
}

func (s *silentStream) Chunks() <-chan []byte { return s.ch }

func (s *silentStream) Format() domain.PCMFormat { return CaptureFormat }

func (s *silentStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
