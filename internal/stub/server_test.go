package stub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/wav"
)

type memRecorder struct {
	mu  sync.Mutex
	ins []domain.Interaction
}

func (r *memRecorder) Record(_ context.Context, in domain.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ins = append(r.ins, in)
	return nil
}

func (r *memRecorder) all() []domain.Interaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Interaction(nil), r.ins...)
}

func upload(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="recording.wav"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestConversationReturnsReply(t *testing.T) {
	rec := &memRecorder{}
	s := New(logger.New(logger.LevelOff, nil), WithRecorder(rec))

	body, ct := upload(t, "audio/wav", []byte("RIFF...."))
	req := httptest.NewRequest(http.MethodPost, "/conversation/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var r Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, "Hello! I heard you.", r.ResponseText)
	assert.Equal(t, "neutral", r.Emotion)
	assert.Equal(t, "nod", r.Animation)

	audio, err := base64.StdEncoding.DecodeString(r.AudioOutput)
	require.NoError(t, err)
	assert.True(t, wav.IsWAV(audio))

	ins := rec.all()
	require.Len(t, ins, 1)
	assert.NotEmpty(t, ins[0].ID)
	assert.Equal(t, r.ResponseText, ins[0].ResponseText)
}

func TestConversationRejectsNonAudio(t *testing.T) {
	rec := &memRecorder{}
	s := New(logger.New(logger.LevelOff, nil), WithRecorder(rec))

	body, ct := upload(t, "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/conversation/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "File provided is not an audio file.")
	assert.Empty(t, rec.all())
}

func TestConversationRequiresFile(t *testing.T) {
	s := New(logger.New(logger.LevelOff, nil))

	req := httptest.NewRequest(http.MethodPost, "/conversation/", strings.NewReader(""))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRoot(t *testing.T) {
	s := New(logger.New(logger.LevelOff, nil))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"Hello":"World"}`, w.Body.String())
}

func TestAnimationForEmotion(t *testing.T) {
	tests := map[string]string{
		"happy":     "wave",
		"sad":       "comfort",
		"angry":     "angry_gesture",
		"neutral":   "nod",
		"surprised": "idle",
		"":          "idle",
	}
	for emotion, want := range tests {
		assert.Equal(t, want, AnimationForEmotion(emotion), emotion)
	}
}

func TestDefaultResponder(t *testing.T) {
	tests := []struct {
		input   string
		emotion string
	}{
		{"thank you so much", "happy"},
		{"I had a bad day", "sad"},
		{"I hate this", "angry"},
		{"what time is it", "neutral"},
	}
	for _, tt := range tests {
		_, emo := DefaultResponder(tt.input)
		assert.Equal(t, tt.emotion, emo, tt.input)
	}
}

func TestWebSocketTextAndBinary(t *testing.T) {
	rec := &memRecorder{}
	s := New(logger.New(logger.LevelOff, nil), WithRecorder(rec))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("thanks, that was great")))
	var r Reply
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, "happy", r.Emotion)
	assert.Equal(t, "wave", r.Animation)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, "neutral", r.Emotion)

	ins := rec.all()
	require.Len(t, ins, 2)
	assert.Equal(t, "thanks, that was great", ins[0].UserInput)
	assert.Equal(t, "voice message (3 bytes)", ins[1].UserInput)
}

func TestSilentClip(t *testing.T) {
	clip := SilentClip(time.Second)
	pcm, f, err := wav.Decode(clip)
	require.NoError(t, err)
	assert.Equal(t, 24000, f.SampleRate)
	assert.Len(t, pcm, 48000)
}

func TestWithAudioServedVerbatim(t *testing.T) {
	clip := []byte("ID3 pretend mp3 bytes")
	s := New(logger.New(logger.LevelOff, nil), WithAudio(clip))

	body, ct := upload(t, "audio/wav", []byte("RIFF...."))
	req := httptest.NewRequest(http.MethodPost, "/conversation/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var r Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, base64.StdEncoding.EncodeToString(clip), r.AudioOutput)
}
