package conversation

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/stub"
)

func TestNewWSClientURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/alice"},
		{"https://mate.example.com/", "wss://mate.example.com/ws/alice"},
		{"ws://10.0.0.2:9000/api", "ws://10.0.0.2:9000/api/ws/alice"},
	}
	for _, tt := range tests {
		c, err := NewWSClient(tt.base, "alice", quietLog())
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.URL())
	}

	_, err := NewWSClient("ftp://host", "alice", quietLog())
	assert.Error(t, err)
}

func TestWSSubmitAndText(t *testing.T) {
	srv := httptest.NewServer(stub.New(quietLog()).Handler())
	defer srv.Close()

	c, err := NewWSClient(srv.URL, "alice", quietLog())
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Submit(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, domain.AnimationNod, reply.Animation)
	assert.NotEmpty(t, reply.AudioOutput)

	// Same connection carries the typed turn.
	reply, err = c.SubmitText(context.Background(), "thank you!")
	require.NoError(t, err)
	assert.Equal(t, domain.AvatarState{Animation: domain.AnimationWave, Emotion: domain.EmotionHappy}, reply.State())
}

func TestWSUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewWSClient(url, "alice", quietLog())
	require.NoError(t, err)

	_, err = c.SubmitText(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrConversationUnavailable)
}

func TestWSTimeoutAndRedial(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connects := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connects <- struct{}{}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "slow" {
				continue
			}
			_ = conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"response_text":"ok","audio_output":"","animation":"nod","emotion":"sad"}`))
		}
	}))
	defer srv.Close()

	c, err := NewWSClient(srv.URL, "bob", quietLog(), WithWSTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SubmitText(context.Background(), "slow")
	assert.ErrorIs(t, err, domain.ErrConversationUnavailable)

	reply, err := c.SubmitText(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionSad, reply.Emotion)
	assert.Len(t, connects, 2, "a timed-out connection is re-dialed")
}

func TestWSMalformedReply(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0xff})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"response_text":1}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c, err := NewWSClient(srv.URL, "bob", quietLog())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SubmitText(context.Background(), "hi")
	assert.ErrorIs(t, err, domain.ErrConversationUnavailable)
}

func TestWSEmptyPayload(t *testing.T) {
	c, err := NewWSClient("http://localhost:1", "alice", quietLog())
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), domain.AudioPayload{})
	assert.ErrorIs(t, err, domain.ErrConversationUnavailable)
}

func TestWSCustomDialerReusesConnection(t *testing.T) {
	srv := httptest.NewServer(stub.New(quietLog()).Handler())
	defer srv.Close()

	var dials atomic.Int32
	d := &websocket.Dialer{
		HandshakeTimeout: time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dials.Add(1)
			var nd net.Dialer
			return nd.DialContext(ctx, network, addr)
		},
	}
	c, err := NewWSClient(srv.URL, "bob", quietLog(), WithDialer(d))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SubmitText(context.Background(), "hello")
	require.NoError(t, err)
	_, err = c.SubmitText(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), dials.Load())
}
