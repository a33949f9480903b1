package domain

import "context"

// Microphone opens the platform capture device. Open fails with an error
// wrapping ErrPermissionDenied when access is refused or unavailable.
type Microphone interface {
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream is an open capture device. Chunks delivers raw PCM in
// arrival order and is closed once the stream stops for any reason.
// Close releases the device and is safe to call more than once.
type AudioStream interface {
	Chunks() <-chan []byte
	Format() PCMFormat
	Close() error
}

// PCMFormat describes raw samples coming off a capture device.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PayloadSink is the single consumer of finished captures.
type PayloadSink interface {
	HandlePayload(p AudioPayload)
	HandleCaptureError(err error)
}

// Player starts audio playback of an encoded reply.
type Player interface {
	Play(audio []byte) (Playback, error)
}

// Playback is one running playback instance. Done is closed when the
// audio finishes or is stopped.
type Playback interface {
	Done() <-chan struct{}
	Stop()
}

// Conversation submits a captured utterance to the conversation service.
// Every failure wraps ErrConversationUnavailable, except ErrBusy when a
// previous submission is still outstanding.
type Conversation interface {
	Submit(ctx context.Context, payload AudioPayload) (*ConversationReply, error)
}

// TextConversation is implemented by transports that accept typed turns.
type TextConversation interface {
	SubmitText(ctx context.Context, text string) (*ConversationReply, error)
}

// HistoryFeed is a live, read-only view of the most recent interactions,
// newest first. Each value received is a full snapshot.
type HistoryFeed interface {
	Subscribe(ctx context.Context, limit int) (<-chan []Interaction, <-chan error, error)
}

// HistoryRecorder appends interactions. Only the conversation service
// side writes history; the client never does.
type HistoryRecorder interface {
	Record(ctx context.Context, in Interaction) error
}
