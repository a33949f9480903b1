// Package stub is a development stand-in for the conversation service. It
// speaks the same wire contract (multipart POST /conversation/ and
// GET /ws/:user_id) but answers with canned text and a short silent clip
// instead of running speech recognition, a language model and TTS.
package stub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/wav"
)

// Reply is the JSON body returned for every turn.
type Reply struct {
	ResponseText string `json:"response_text"`
	Emotion      string `json:"emotion"`
	Animation    string `json:"animation"`
	AudioOutput  string `json:"audio_output"`
}

// Responder produces the response text and emotion label for a turn.
type Responder func(userInput string) (text, emotion string)

// Option configures the Server.
type Option func(*Server)

// WithRecorder stores every turn in rec.
func WithRecorder(rec domain.HistoryRecorder) Option {
	return func(s *Server) { s.rec = rec }
}

// WithResponder replaces the canned responder.
func WithResponder(r Responder) Option {
	return func(s *Server) { s.respond = r }
}

// WithAudio sets the raw bytes returned (base64 encoded) as audio_output.
func WithAudio(audio []byte) Option {
	return func(s *Server) { s.audio = audio }
}

// Server is the stub conversation service.
type Server struct {
	e        *echo.Echo
	log      *logger.Logger
	rec      domain.HistoryRecorder
	respond  Responder
	audio    []byte
	upgrader websocket.Upgrader
}

// New builds the stub service and its routes.
func New(log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		e:       echo.New(),
		log:     log,
		respond: DefaultResponder,
		audio:   SilentClip(500 * time.Millisecond),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.CORS())

	s.e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"Hello": "World"})
	})
	s.e.POST("/conversation/", s.handleConversation)
	s.e.GET("/ws/:user_id", s.handleWS)
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr. Blocks until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("stub: listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) handleConversation(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Field 'file' is required."})
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "audio/") {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "File provided is not an audio file."})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Could not read upload."})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Could not read upload."})
	}

	reply := s.turn(c.Request().Context(), "rest_user", transcribe(data))
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleWS(c echo.Context) error {
	userID := c.Param("user_id")
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error("stub: websocket upgrade failed: %v", err)
		return err
	}
	defer conn.Close()
	s.log.Info("stub: websocket connection established for user %s", userID)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("stub: websocket closed for user %s", userID)
			} else {
				s.log.Warn("stub: websocket read for user %s: %v", userID, err)
			}
			return nil
		}

		var input string
		switch mt {
		case websocket.TextMessage:
			input = string(msg)
		case websocket.BinaryMessage:
			input = transcribe(msg)
		default:
			continue
		}

		reply := s.turn(c.Request().Context(), userID, input)
		if err := conn.WriteJSON(reply); err != nil {
			s.log.Warn("stub: websocket write for user %s: %v", userID, err)
			closeMsg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "An error occurred")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			return nil
		}
	}
}

// turn runs one canned exchange and records it.
func (s *Server) turn(ctx context.Context, userID, input string) Reply {
	text, emotion := s.respond(input)
	animation := AnimationForEmotion(emotion)

	if s.rec != nil {
		in := domain.Interaction{
			ID:           uuid.NewString(),
			UserInput:    input,
			ResponseText: text,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.rec.Record(ctx, in); err != nil {
			s.log.Error("stub: storing interaction for %s: %v", userID, err)
		}
	}

	s.log.Debug("stub: %s said %q -> %q (%s/%s)", userID, input, text, animation, emotion)
	return Reply{
		ResponseText: text,
		Emotion:      emotion,
		Animation:    animation,
		AudioOutput:  base64.StdEncoding.EncodeToString(s.audio),
	}
}

// AnimationForEmotion maps an emotion label onto a gesture. "angry" maps
// to a gesture the client does not know; clients are expected to cope.
func AnimationForEmotion(emotion string) string {
	switch emotion {
	case "happy":
		return "wave"
	case "sad":
		return "comfort"
	case "angry":
		return "angry_gesture"
	case "neutral":
		return "nod"
	default:
		return "idle"
	}
}

// DefaultResponder picks an emotion from a few keywords and answers with a
// matching canned line.
func DefaultResponder(input string) (string, string) {
	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, "thank", "great", "love", "awesome"):
		return "That's wonderful to hear!", "happy"
	case containsAny(lower, "sad", "tired", "lonely", "bad day"):
		return "I'm sorry you feel that way. I'm here with you.", "sad"
	case containsAny(lower, "angry", "hate", "furious"):
		return "That sounds really frustrating.", "angry"
	default:
		return "Hello! I heard you.", "neutral"
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// transcribe stands in for speech recognition.
func transcribe(audio []byte) string {
	return fmt.Sprintf("voice message (%d bytes)", len(audio))
}

// SilentClip returns d of 24 kHz mono silence as a WAV file.
func SilentClip(d time.Duration) []byte {
	f := domain.PCMFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	n := int(d.Seconds()*float64(f.SampleRate)) * 2
	return wav.Encode(f, make([]byte, n))
}
