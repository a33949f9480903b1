package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/wav"
)

// Compile-time interface checks.
var (
	_ domain.Player   = (*Player)(nil)
	_ domain.Playback = (*playback)(nil)
)

// Reply audio outside these bounds is rejected before it reaches the device.
const (
	minSampleRate = 8000
	maxSampleRate = 192000
)

// Player plays reply audio (mp3 or WAV) through oto. oto allows one context
// per process, so the device is opened once with the format of the first
// reply that decodes cleanly; later replies are converted to that format.
type Player struct {
	log *logger.Logger

	mu     sync.Mutex
	ctx    *oto.Context
	device pcmFormat
}

// NewPlayer creates an audio player. The device is opened on first Play.
func NewPlayer(log *logger.Logger) *Player {
	return &Player{log: log}
}

// Play decodes audio and starts playing it. Returns immediately; the
// returned Playback's Done channel closes when the sound has finished.
func (p *Player) Play(audio []byte) (domain.Playback, error) {
	pcm, src, err := decode(audio)
	if err != nil {
		return nil, fmt.Errorf("audio player: %w", err)
	}

	octx, device, err := p.context(src)
	if err != nil {
		return nil, err
	}
	if src != device {
		p.log.Debug("audio player: converting %d Hz/%d ch to %d Hz/%d ch", src.rate, src.channels, device.rate, device.channels)
		pcm = convert(pcm, src, device)
	}

	op := octx.NewPlayer(bytes.NewReader(pcm))
	pb := &playback{player: op, done: make(chan struct{})}
	op.Play()
	p.log.Debug("audio player: playing %d bytes of PCM (rate=%d, channels=%d)", len(pcm), device.rate, device.channels)

	go pb.wait(p.log)
	return pb, nil
}

// context returns the process-wide oto context and the format it runs at,
// creating it with f on first use.
func (p *Player) context(f pcmFormat) (*oto.Context, pcmFormat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return p.ctx, p.device, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   f.rate,
		ChannelCount: f.channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, pcmFormat{}, fmt.Errorf("audio player: init: %w", err)
	}
	<-readyChan

	p.ctx, p.device = ctx, f
	p.log.Debug("audio player initialized (rate=%d, channels=%d)", f.rate, f.channels)
	return ctx, f, nil
}

// decode turns an encoded reply into 16-bit little-endian PCM.
func decode(audio []byte) ([]byte, pcmFormat, error) {
	if len(audio) == 0 {
		return nil, pcmFormat{}, errors.New("empty audio")
	}

	if wav.IsWAV(audio) {
		pcm, f, err := wav.Decode(audio)
		if err != nil {
			return nil, pcmFormat{}, err
		}
		if f.BitsPerSample != 16 {
			return nil, pcmFormat{}, fmt.Errorf("unsupported WAV bit depth %d", f.BitsPerSample)
		}
		pf := pcmFormat{rate: f.SampleRate, channels: f.Channels}
		if err := pf.validate(); err != nil {
			return nil, pcmFormat{}, err
		}
		return pcm, pf, nil
	}

	d, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return nil, pcmFormat{}, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, pcmFormat{}, fmt.Errorf("decode mp3: %w", err)
	}
	// go-mp3 always yields 16-bit stereo.
	pf := pcmFormat{rate: d.SampleRate(), channels: 2}
	if err := pf.validate(); err != nil {
		return nil, pcmFormat{}, err
	}
	return pcm, pf, nil
}

// playback is one running oto player.
type playback struct {
	player *oto.Player
	done   chan struct{}
}

func (pb *playback) Done() <-chan struct{} { return pb.done }

// Stop interrupts the audio. Done closes shortly after.
func (pb *playback) Stop() {
	pb.player.Pause()
}

func (pb *playback) wait(log *logger.Logger) {
	for pb.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := pb.player.Close(); err != nil {
		log.Warn("audio player: close: %v", err)
	}
	close(pb.done)
}
