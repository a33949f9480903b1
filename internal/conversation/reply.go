// Package conversation submits captured utterances to the remote
// conversation service and parses its replies. Two transports are
// provided: a one-shot HTTP multipart upload and a persistent WebSocket.
package conversation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// replyBody is the JSON envelope returned by the service.
type replyBody struct {
	ResponseText *string `json:"response_text"`
	AudioOutput  *string `json:"audio_output"`
	Animation    *string `json:"animation"`
	Emotion      *string `json:"emotion"`
}

// parseReply validates a reply body. Missing fields and undecodable audio
// are malformed. Out-of-set animation/emotion values are clamped to idle
// and neutral rather than failing the whole turn.
func parseReply(body []byte, log *logger.Logger) (*domain.ConversationReply, error) {
	var rb replyBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	if rb.ResponseText == nil || rb.AudioOutput == nil || rb.Animation == nil || rb.Emotion == nil {
		return nil, errors.New("reply is missing required fields")
	}

	audio, err := base64.StdEncoding.DecodeString(*rb.AudioOutput)
	if err != nil {
		return nil, fmt.Errorf("decode audio_output: %w", err)
	}

	anim, ok := domain.ParseAnimation(*rb.Animation)
	if !ok {
		log.Warn("conversation: unknown animation %q, using %s", *rb.Animation, anim)
	}
	emo, ok := domain.ParseEmotion(*rb.Emotion)
	if !ok {
		log.Warn("conversation: unknown emotion %q, using %s", *rb.Emotion, emo)
	}

	return &domain.ConversationReply{
		ResponseText: *rb.ResponseText,
		AudioOutput:  audio,
		Animation:    anim,
		Emotion:      emo,
	}, nil
}

// unavailable folds any failure into ErrConversationUnavailable while
// keeping the cause in the chain for logs.
func unavailable(op string, err error) error {
	return fmt.Errorf("conversation: %s: %w: %w", op, domain.ErrConversationUnavailable, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
