// Package spatial holds the avatar's placement anchor in the tracked
// physical space.
package spatial

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// DefaultAnchor is one meter in front of the origin on the forward axis.
var DefaultAnchor = mgl32.Vec3{0, 0, -1}

// SelectEvent is one pointer or gaze pick from the immersive runtime.
// Intersection is nil when the pick did not hit tracked geometry.
type SelectEvent struct {
	Intersection *mgl32.Vec3
}

// Option configures the Model.
type Option func(*Model)

// WithAnchor overrides the starting anchor.
func WithAnchor(v mgl32.Vec3) Option {
	return func(m *Model) { m.anchor = v }
}

// WithAnchorListener registers fn to be called after every anchor move.
// Listeners run in move order, outside the model's lock, so fn may read
// the model.
func WithAnchorListener(fn func(mgl32.Vec3)) Option {
	return func(m *Model) { m.listeners = append(m.listeners, fn) }
}

// Model is the placement model. Selections only move the anchor while an
// immersive session is active; outside one the anchor stays frozen.
type Model struct {
	log       *logger.Logger
	listeners []func(mgl32.Vec3)

	// moveMu orders anchor moves with their notifications.
	moveMu sync.Mutex

	mu        sync.RWMutex
	immersive bool
	anchor    mgl32.Vec3
}

// New creates a model with the anchor at DefaultAnchor and no immersive
// session.
func New(log *logger.Logger, opts ...Option) *Model {
	m := &Model{log: log, anchor: DefaultAnchor}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetImmersive records whether an immersive session is active.
func (m *Model) SetImmersive(active bool) {
	m.mu.Lock()
	changed := m.immersive != active
	m.immersive = active
	m.mu.Unlock()
	if changed {
		m.log.Info("spatial: immersive session active=%v", active)
	}
}

// Immersive reports whether an immersive session is active.
func (m *Model) Immersive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.immersive
}

// OnSelect moves the anchor to the event's intersection point verbatim.
// Outside an immersive session the event is ignored and nil is returned.
// An event with no intersection is dropped with domain.ErrNoIntersection.
func (m *Model) OnSelect(ev SelectEvent) error {
	m.moveMu.Lock()
	defer m.moveMu.Unlock()

	m.mu.Lock()
	if !m.immersive {
		m.mu.Unlock()
		m.log.Debug("spatial: select ignored outside immersive session")
		return nil
	}
	if ev.Intersection == nil {
		m.mu.Unlock()
		return domain.ErrNoIntersection
	}
	m.anchor = *ev.Intersection
	anchor := m.anchor
	m.mu.Unlock()

	for _, fn := range m.listeners {
		fn(anchor)
	}

	m.log.Debug("spatial: anchor moved to (%.3f, %.3f, %.3f)", anchor.X(), anchor.Y(), anchor.Z())
	return nil
}

// Anchor returns a copy of the current anchor.
func (m *Model) Anchor() mgl32.Vec3 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor
}

// ModelMatrix is the translation the renderer applies to place the avatar
// at the anchor.
func (m *Model) ModelMatrix() mgl32.Mat4 {
	a := m.Anchor()
	return mgl32.Translate3D(a[0], a[1], a[2])
}
