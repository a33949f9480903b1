package avatar

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/audio/mock"
	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

func reply(a domain.AnimationKind, e domain.EmotionKind) *domain.ConversationReply {
	return &domain.ConversationReply{ResponseText: "hi", AudioOutput: []byte{1, 2, 3}, Animation: a, Emotion: e}
}

var (
	waveHappy   = domain.AvatarState{Animation: domain.AnimationWave, Emotion: domain.EmotionHappy}
	comfortSad  = domain.AvatarState{Animation: domain.AnimationComfort, Emotion: domain.EmotionSad}
	testTimeout = time.Second
)

// queued captures completions so the test decides when to deliver them.
func queued(t *testing.T, player *mock.Player, opts ...Option) (*Controller, chan uint64) {
	t.Helper()
	ended := make(chan uint64, 8)
	opts = append(opts, WithEndedHandler(func(id uint64) { ended <- id }))
	return New(player, logger.New(logger.LevelOff, nil), opts...), ended
}

func recv(t *testing.T, ch chan uint64) uint64 {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(testTimeout):
		require.FailNow(t, "no playback completion delivered")
		return 0
	}
}

func TestStartsResting(t *testing.T) {
	c, _ := queued(t, mock.NewPlayer())
	assert.True(t, c.State().IsResting())
}

func TestReplyThenPlaybackEnd(t *testing.T) {
	player := mock.NewPlayer()
	c, ended := queued(t, player)

	id := c.ApplyReply(reply(domain.AnimationWave, domain.EmotionHappy))
	assert.Equal(t, waveHappy, c.State(), "pose applies immediately")

	pbs := player.Playbacks()
	require.Len(t, pbs, 1)
	assert.Equal(t, []byte{1, 2, 3}, pbs[0].Audio)

	select {
	case <-ended:
		require.FailNow(t, "completion before playback finished")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, waveHappy, c.State())

	pbs[0].Finish()
	got := recv(t, ended)
	assert.Equal(t, id, got)
	assert.True(t, c.PlaybackEnded(got))
	assert.True(t, c.State().IsResting())

	// Exactly once.
	assert.False(t, c.PlaybackEnded(got))
}

func TestStaleCompletionDoesNotClobber(t *testing.T) {
	player := mock.NewPlayer()
	c, ended := queued(t, player)

	first := c.ApplyReply(reply(domain.AnimationWave, domain.EmotionHappy))
	second := c.ApplyReply(reply(domain.AnimationComfort, domain.EmotionSad))
	require.NotEqual(t, first, second)

	pbs := player.Playbacks()
	require.Len(t, pbs, 2)
	assert.True(t, pbs[0].Stopped(), "older playback is interrupted")

	assert.Equal(t, first, recv(t, ended))
	assert.False(t, c.PlaybackEnded(first))
	assert.Equal(t, comfortSad, c.State(), "stale completion must not reset the newer pose")

	pbs[1].Finish()
	assert.Equal(t, second, recv(t, ended))
	assert.True(t, c.PlaybackEnded(second))
	assert.True(t, c.State().IsResting())
}

func TestPlayFailureStillReturnsToRest(t *testing.T) {
	player := mock.NewPlayer()
	player.FailWith(errors.New("undecodable"))
	c, ended := queued(t, player)

	id := c.ApplyReply(reply(domain.AnimationNod, domain.EmotionNeutral))
	assert.Equal(t, domain.AnimationNod, c.State().Animation)

	assert.Equal(t, id, recv(t, ended))
	assert.True(t, c.PlaybackEnded(id))
	assert.True(t, c.State().IsResting())
}

func TestDefaultHandlerResetsDirectly(t *testing.T) {
	player := mock.NewPlayer()
	c := New(player, logger.New(logger.LevelOff, nil))

	c.ApplyReply(reply(domain.AnimationWave, domain.EmotionHappy))
	player.Playbacks()[0].Finish()

	require.Eventually(t, func() bool { return c.State().IsResting() }, testTimeout, 5*time.Millisecond)
}

func TestStateListenerSeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var seen []domain.AvatarState
	listener := WithStateListener(func(s domain.AvatarState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	player := mock.NewPlayer()
	c, ended := queued(t, player, listener)

	c.ApplyReply(reply(domain.AnimationWave, domain.EmotionHappy))
	player.Playbacks()[0].Finish()
	c.PlaybackEnded(recv(t, ended))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.AvatarState{waveHappy, domain.RestingState}, seen)
}

func TestCloseStopsPlayback(t *testing.T) {
	player := mock.NewPlayer()
	c, ended := queued(t, player)

	id := c.ApplyReply(reply(domain.AnimationWave, domain.EmotionHappy))
	c.Close()

	assert.True(t, player.Playbacks()[0].Stopped())
	assert.Equal(t, id, recv(t, ended))
}
