package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrPermissionDenied        = errors.New("microphone permission denied")
	ErrConversationUnavailable = errors.New("conversation service unavailable")
	ErrBusy                    = errors.New("a request is already outstanding")
	ErrNotRecording            = errors.New("not recording")
	ErrNoIntersection          = errors.New("selection carries no intersection")
	ErrNotImplemented          = errors.New("not implemented")
)
