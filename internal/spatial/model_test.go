package spatial

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

func newModel(opts ...Option) *Model {
	return New(logger.New(logger.LevelOff, nil), opts...)
}

func at(x, y, z float32) SelectEvent {
	v := mgl32.Vec3{x, y, z}
	return SelectEvent{Intersection: &v}
}

func TestDefaultAnchor(t *testing.T) {
	m := newModel()
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, m.Anchor())
	assert.False(t, m.Immersive())
}

func TestSelectIgnoredOutsideImmersive(t *testing.T) {
	m := newModel()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.OnSelect(at(float32(i), 1, 2)))
	}
	assert.Equal(t, DefaultAnchor, m.Anchor())

	m.SetImmersive(true)
	require.NoError(t, m.OnSelect(at(1, 0, -2)))
	m.SetImmersive(false)
	require.NoError(t, m.OnSelect(at(9, 9, 9)))
	assert.Equal(t, mgl32.Vec3{1, 0, -2}, m.Anchor(), "anchor frozen at last value")
}

func TestSelectReplacesAnchorVerbatim(t *testing.T) {
	m := newModel()
	m.SetImmersive(true)

	require.NoError(t, m.OnSelect(at(0.25, -1.5, -3.125)))
	assert.Equal(t, mgl32.Vec3{0.25, -1.5, -3.125}, m.Anchor())
}

func TestSelectWithoutIntersectionDropped(t *testing.T) {
	m := newModel()
	m.SetImmersive(true)

	assert.ErrorIs(t, m.OnSelect(SelectEvent{}), domain.ErrNoIntersection)
	assert.Equal(t, DefaultAnchor, m.Anchor())
}

func TestAnchorIsACopy(t *testing.T) {
	m := newModel()
	m.SetImmersive(true)
	src := mgl32.Vec3{1, 2, 3}
	require.NoError(t, m.OnSelect(SelectEvent{Intersection: &src}))

	src[0] = 100
	got := m.Anchor()
	got[1] = 100
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, m.Anchor())
}

func TestAnchorListener(t *testing.T) {
	var seen []mgl32.Vec3
	m := newModel(WithAnchorListener(func(v mgl32.Vec3) { seen = append(seen, v) }))

	require.NoError(t, m.OnSelect(at(1, 1, 1)))
	m.SetImmersive(true)
	require.NoError(t, m.OnSelect(at(2, 2, 2)))

	assert.Equal(t, []mgl32.Vec3{{2, 2, 2}}, seen)
}

func TestAnchorReadableWhileListenerBlocks(t *testing.T) {
	var m *Model
	entered := make(chan mgl32.Vec3, 1)
	release := make(chan struct{})
	m = newModel(WithAnchorListener(func(v mgl32.Vec3) {
		entered <- m.Anchor()
		<-release
	}))
	m.SetImmersive(true)

	done := make(chan error, 1)
	go func() { done <- m.OnSelect(at(4, 5, 6)) }()

	select {
	case seen := <-entered:
		assert.Equal(t, mgl32.Vec3{4, 5, 6}, seen)
	case <-time.After(time.Second):
		require.FailNow(t, "listener never ran")
	}
	// Readers are not held up by a slow listener.
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, m.Anchor())
	assert.True(t, m.Immersive())

	close(release)
	require.NoError(t, <-done)
}

func TestModelMatrix(t *testing.T) {
	m := newModel(WithAnchor(mgl32.Vec3{1, 2, 3}))
	got := m.ModelMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, got)
}
