// Package session implements the interaction controller that sequences
// one turn: capture, submission, reply application and the return to rest
// when the reply's audio ends. All state changes happen on a single
// goroutine draining a typed event queue.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/armate/internal/avatar"
	"github.com/hammamikhairi/armate/internal/capture"
	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/metrics"
)

// Compile-time interface check.
var _ domain.PayloadSink = (*Controller)(nil)

// Status is the transient UI state of the session.
type Status struct {
	ResponseText string
	Busy         bool
	Recording    bool
	Avatar       domain.AvatarState
}

// Line is the main status text.
func (s Status) Line() string {
	switch {
	case s.Busy:
		return LineThinking()
	case s.ResponseText != "":
		return s.ResponseText
	default:
		return LineListening()
	}
}

// Hint is the text on the microphone control.
func (s Status) Hint() string {
	switch {
	case s.Busy:
		return HintProcessing()
	case s.Recording:
		return HintRecording()
	default:
		return HintIdle()
	}
}

// Option configures the Controller.
type Option func(*Controller)

// WithSubmitTimeout bounds each conversation round trip.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Controller) { c.submitTimeout = d }
}

// WithAvatarListener forwards every avatar state change to fn, e.g. to
// publish it to the renderer. fn must not block.
func WithAvatarListener(fn func(domain.AvatarState)) Option {
	return func(c *Controller) { c.avatarOpts = append(c.avatarOpts, avatar.WithStateListener(fn)) }
}

// WithCaptureOptions passes options through to the capture controller.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(c *Controller) { c.captureOpts = append(c.captureOpts, opts...) }
}

// Controller owns the capture and avatar controllers and is the only
// writer of the session Status.
type Controller struct {
	conv          domain.Conversation
	log           *logger.Logger
	submitTimeout time.Duration
	captureOpts   []capture.Option
	avatarOpts    []avatar.Option

	capture *capture.Controller
	avatar  *avatar.Controller
	events  *queue

	// Loop-owned.
	turn string

	mu     sync.Mutex
	status Status
	subs   []chan Status
	closed bool
}

// New wires a session around a microphone, a reply player and a
// conversation transport.
func New(mic domain.Microphone, player domain.Player, conv domain.Conversation, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		conv:          conv,
		log:           log,
		submitTimeout: 30 * time.Second,
		events:        newQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.capture = capture.New(mic, c, log, c.captureOpts...)
	avatarOpts := append([]avatar.Option{avatar.WithEndedHandler(c.playbackEnded)}, c.avatarOpts...)
	c.avatar = avatar.New(player, log, avatarOpts...)
	c.status.Avatar = c.avatar.State()
	return c
}

// ToggleMic starts a recording when idle and stops it when recording.
// It is ignored while a reply is outstanding.
func (c *Controller) ToggleMic() {
	c.events.post(event{kind: evToggleMic})
}

// SubmitText runs a turn from typed input instead of a recording.
func (c *Controller) SubmitText(text string) {
	c.events.post(event{kind: evSubmitText, text: text})
}

// Status returns a copy of the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe returns a channel that always holds the latest status. It is
// closed when Run returns.
func (c *Controller) Subscribe() <-chan Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Status, 1)
	if c.closed {
		close(ch)
		return ch
	}
	ch <- c.status
	c.subs = append(c.subs, ch)
	return ch
}

// HandlePayload receives a finished recording from the capture controller.
func (c *Controller) HandlePayload(p domain.AudioPayload) {
	c.events.post(event{kind: evPayloadReady, payload: p})
}

// HandleCaptureError receives a device failure from the capture controller.
func (c *Controller) HandleCaptureError(err error) {
	c.events.post(event{kind: evCaptureFailed, err: err})
}

func (c *Controller) playbackEnded(id uint64) {
	c.events.post(event{kind: evPlaybackEnded, playback: id})
}

// Run processes events until ctx is cancelled. On exit the microphone is
// released and any playing audio is stopped.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("session: started")
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.events.notify:
			for _, ev := range c.events.drain() {
				c.handle(ctx, ev)
			}
		}
	}
}

func (c *Controller) shutdown() {
	c.capture.Abandon()
	c.avatar.Close()

	c.mu.Lock()
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.mu.Unlock()
	c.log.Info("session: stopped")
}

func (c *Controller) handle(ctx context.Context, ev event) {
	c.log.Debug("session: event %s", ev.kind)

	switch ev.kind {
	case evToggleMic:
		c.onToggle(ctx)

	case evSubmitText:
		c.onText(ctx, ev.text)

	case evPayloadReady:
		metrics.Recording.Set(0)
		metrics.CaptureSeconds.Observe(ev.payload.Duration.Seconds())
		c.beginTurn(ctx, func(ctx context.Context) (*domain.ConversationReply, error) {
			return c.conv.Submit(ctx, ev.payload)
		})

	case evCaptureFailed:
		metrics.Recording.Set(0)
		metrics.Turns.WithLabelValues(metrics.OutcomeCaptureFailed).Inc()
		c.log.Warn("session: recording lost: %v", ev.err)
		c.update(func(s *Status) {
			s.Recording = false
			s.ResponseText = LineMicDenied()
		})

	case evReplyReceived:
		if ev.turn != c.turn {
			c.log.Warn("session: dropping reply for stale turn %s", ev.turn)
			return
		}
		c.turn = ""
		metrics.ObserveSubmit(ev.started)
		metrics.Turns.WithLabelValues(metrics.OutcomeOK).Inc()
		c.avatar.ApplyReply(ev.reply)
		c.update(func(s *Status) {
			s.Busy = false
			s.ResponseText = ev.reply.ResponseText
			s.Avatar = c.avatar.State()
		})

	case evSubmitFailed:
		if ev.turn != c.turn {
			return
		}
		c.turn = ""
		c.onSubmitFailed(ev)

	case evPlaybackEnded:
		if !c.avatar.PlaybackEnded(ev.playback) {
			metrics.StaleCompletions.Inc()
			return
		}
		c.update(func(s *Status) { s.Avatar = c.avatar.State() })
	}
}

func (c *Controller) onToggle(ctx context.Context) {
	st := c.Status()
	if st.Busy {
		c.log.Debug("session: mic toggle ignored while busy")
		return
	}

	if st.Recording {
		if err := c.capture.Stop(); err != nil {
			c.log.Warn("session: stop recording: %v", err)
			c.update(func(s *Status) { s.Recording = false })
			return
		}
		// The payload arrives as its own event; mark busy now so the
		// control is disabled in between.
		c.update(func(s *Status) {
			s.Recording = false
			s.Busy = true
		})
		return
	}

	if err := c.capture.Start(ctx); err != nil {
		metrics.Turns.WithLabelValues(metrics.OutcomePermissionDenied).Inc()
		c.log.Warn("session: %v", err)
		c.update(func(s *Status) { s.ResponseText = LineMicDenied() })
		return
	}
	metrics.Recording.Set(1)
	c.update(func(s *Status) {
		s.Recording = true
		s.ResponseText = ""
	})
}

func (c *Controller) onText(ctx context.Context, text string) {
	st := c.Status()
	if st.Busy || st.Recording {
		c.log.Debug("session: typed turn ignored (busy=%v, recording=%v)", st.Busy, st.Recording)
		return
	}
	tc, ok := c.conv.(domain.TextConversation)
	if !ok {
		c.log.Warn("session: transport does not accept typed turns")
		c.onSubmitFailed(event{err: domain.ErrNotImplemented})
		return
	}
	c.beginTurn(ctx, func(ctx context.Context) (*domain.ConversationReply, error) {
		return tc.SubmitText(ctx, text)
	})
}

// beginTurn marks the session busy and runs submit off the loop. Its
// outcome comes back as an event tagged with the turn id.
func (c *Controller) beginTurn(ctx context.Context, submit func(context.Context) (*domain.ConversationReply, error)) {
	turn := uuid.NewString()
	c.turn = turn
	c.update(func(s *Status) {
		s.Busy = true
		s.Recording = false
	})
	c.log.Info("session: turn %s submitted", turn)

	started := time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()

		reply, err := submit(ctx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			c.events.post(event{kind: evSubmitFailed, turn: turn, err: err, started: started})
			return
		}
		c.events.post(event{kind: evReplyReceived, turn: turn, reply: reply, started: started})
	}()
}

// onSubmitFailed abandons the turn. The avatar is left exactly as it was.
func (c *Controller) onSubmitFailed(ev event) {
	outcome := metrics.OutcomeUnavailable
	if errors.Is(ev.err, domain.ErrBusy) {
		outcome = metrics.OutcomeBusy
	}
	metrics.Turns.WithLabelValues(outcome).Inc()
	if !ev.started.IsZero() {
		metrics.ObserveSubmit(ev.started)
	}
	c.log.Error("session: turn failed: %v", ev.err)
	c.update(func(s *Status) {
		s.Busy = false
		s.ResponseText = LineUnavailable()
	})
}

// update applies fn to the status and fans the result out to subscribers.
func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
	s := c.status
	for _, ch := range c.subs {
		select {
		case <-ch: // drop the stale value
		default:
		}
		ch <- s
	}
}
