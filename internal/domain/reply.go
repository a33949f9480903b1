package domain

import "time"

// MIMETypeWAV is the container tag on captured utterances.
const MIMETypeWAV = "audio/wav"

// AudioPayload is one captured utterance. It is handed off exactly once
// from the capture controller to the conversation client.
type AudioPayload struct {
	Data       []byte
	MIMEType   string
	Duration   time.Duration
	CapturedAt time.Time
}

// ConversationReply is the parsed answer from the conversation service.
// AudioOutput holds the decoded bytes of the base64 audio_output field.
type ConversationReply struct {
	ResponseText string
	AudioOutput  []byte
	Animation    AnimationKind
	Emotion      EmotionKind
}

// State returns the avatar state this reply asks for.
func (r *ConversationReply) State() AvatarState {
	return AvatarState{Animation: r.Animation, Emotion: r.Emotion}
}

// Interaction is one stored turn as shown in the history panel.
type Interaction struct {
	ID           string
	UserInput    string
	ResponseText string
	Timestamp    time.Time
}
