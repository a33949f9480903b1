// Package avatar owns the avatar's discrete pose. A reply sets the pose
// and starts its audio; the end of that audio returns the pose to rest.
package avatar

import (
	"sync"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Option configures the Controller.
type Option func(*Controller)

// WithEndedHandler routes playback completions through fn instead of
// calling PlaybackEnded directly. The session controller uses this to
// deliver completions as events on its own queue. fn must not block.
func WithEndedHandler(fn func(id uint64)) Option {
	return func(c *Controller) { c.onEnded = fn }
}

// WithStateListener registers fn to be called on every state change. It
// runs with the controller's lock held and must not call back into it.
func WithStateListener(fn func(domain.AvatarState)) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, fn) }
}

// Controller is the avatar state machine:
//
//	Rest -> ApplyReply -> {animation, emotion} -> playback ended -> Rest
//
// Each ApplyReply gets a fresh playback id. A completion only resets the
// pose if its id is still the current one, so a late completion from an
// older reply never clobbers a newer pose.
type Controller struct {
	player    domain.Player
	log       *logger.Logger
	onEnded   func(id uint64)
	listeners []func(domain.AvatarState)

	mu       sync.Mutex
	state    domain.AvatarState
	current  uint64
	playing  bool
	playback domain.Playback
}

// New creates a resting avatar controller that plays reply audio on player.
func New(player domain.Player, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		player: player,
		log:    log,
		state:  domain.RestingState,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onEnded == nil {
		c.onEnded = func(id uint64) { c.PlaybackEnded(id) }
	}
	return c
}

// State returns a copy of the current pose.
func (c *Controller) State() domain.AvatarState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ApplyReply sets the pose from reply immediately and starts its audio.
// Any playback still running from an earlier reply is stopped. Returns the
// id that the matching completion will carry.
func (c *Controller) ApplyReply(reply *domain.ConversationReply) uint64 {
	c.mu.Lock()
	prev := c.playback
	c.current++
	id := c.current
	c.playing = true
	c.playback = nil
	c.setLocked(reply.State())
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	c.log.Info("avatar: %s (playback #%d)", reply.State(), id)

	pb, err := c.player.Play(reply.AudioOutput)
	if err != nil {
		// Nothing will ever sound; count it as finished so the pose
		// still returns to rest.
		c.log.Warn("avatar: playback #%d failed: %v", id, err)
		go c.onEnded(id)
		return id
	}

	c.mu.Lock()
	if c.current == id {
		c.playback = pb
	}
	c.mu.Unlock()

	go func() {
		<-pb.Done()
		c.onEnded(id)
	}()
	return id
}

// PlaybackEnded resets the pose to rest if id belongs to the most recently
// started playback and has not been handled yet. It reports whether the
// reset happened.
func (c *Controller) PlaybackEnded(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.current || !c.playing {
		c.log.Debug("avatar: ignoring stale completion #%d (current #%d)", id, c.current)
		return false
	}
	c.playing = false
	c.playback = nil
	c.setLocked(domain.RestingState)
	c.log.Info("avatar: playback #%d ended, back to %s", id, domain.RestingState)
	return true
}

// Close stops any running playback. Its completion still flows through
// the ended handler.
func (c *Controller) Close() {
	c.mu.Lock()
	pb := c.playback
	c.mu.Unlock()
	if pb != nil {
		pb.Stop()
	}
}

func (c *Controller) setLocked(s domain.AvatarState) {
	c.state = s
	for _, fn := range c.listeners {
		fn(s)
	}
}
