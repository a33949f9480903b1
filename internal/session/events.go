package session

import (
	"sync"
	"time"

	"github.com/hammamikhairi/armate/internal/domain"
)

type eventKind int

const (
	evToggleMic eventKind = iota
	evSubmitText
	evPayloadReady
	evCaptureFailed
	evReplyReceived
	evSubmitFailed
	evPlaybackEnded
)

func (k eventKind) String() string {
	switch k {
	case evToggleMic:
		return "toggle-mic"
	case evSubmitText:
		return "submit-text"
	case evPayloadReady:
		return "payload-ready"
	case evCaptureFailed:
		return "capture-failed"
	case evReplyReceived:
		return "reply-received"
	case evSubmitFailed:
		return "submit-failed"
	case evPlaybackEnded:
		return "playback-ended"
	default:
		return "unknown"
	}
}

// event is one message on the controller's queue. Only the fields that
// belong to kind are set.
type event struct {
	kind     eventKind
	text     string
	payload  domain.AudioPayload
	reply    *domain.ConversationReply
	err      error
	turn     string
	playback uint64
	started  time.Time
}

// queue is an unbounded FIFO with a coalescing wake-up signal. Producers
// never block, so a handler may post to its own queue.
type queue struct {
	mu     sync.Mutex
	items  []event
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) post(ev event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default: // already signaled
	}
}

// drain removes and returns everything queued so far, oldest first.
func (q *queue) drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
