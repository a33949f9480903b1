package conversation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Conversation     = (*WSClient)(nil)
	_ domain.TextConversation = (*WSClient)(nil)
)

// WSOption configures the WSClient.
type WSOption func(*WSClient)

// WithWSTimeout bounds one request/reply exchange.
func WithWSTimeout(d time.Duration) WSOption {
	return func(c *WSClient) { c.timeout = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(c *WSClient) { c.dialer = d }
}

// WSClient talks to {baseURL}/ws/{userID}. Audio goes out as one binary
// frame, typed text as one text frame; each is answered by one JSON reply
// frame. The connection is dialed on first use and re-dialed after any
// failure.
type WSClient struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	log     *logger.Logger

	inflight atomic.Bool
	mu       sync.Mutex
	conn     *websocket.Conn
}

// NewWSClient creates a websocket transport. baseURL uses the http(s)
// scheme of the service; it is rewritten to ws(s).
func NewWSClient(baseURL, userID string, log *logger.Logger, opts ...WSOption) (*WSClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("conversation: parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("conversation: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/" + url.PathEscape(userID)

	c := &WSClient{
		url:     u.String(),
		dialer:  websocket.DefaultDialer,
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// URL returns the websocket endpoint.
func (c *WSClient) URL() string { return c.url }

// Submit sends the captured audio as a binary frame.
func (c *WSClient) Submit(ctx context.Context, payload domain.AudioPayload) (*domain.ConversationReply, error) {
	if len(payload.Data) == 0 {
		return nil, unavailable("encode frame", fmt.Errorf("empty payload"))
	}
	return c.exchange(ctx, websocket.BinaryMessage, payload.Data)
}

// SubmitText sends a typed utterance as a text frame.
func (c *WSClient) SubmitText(ctx context.Context, text string) (*domain.ConversationReply, error) {
	return c.exchange(ctx, websocket.TextMessage, []byte(text))
}

func (c *WSClient) exchange(ctx context.Context, kind int, data []byte) (*domain.ConversationReply, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer c.inflight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, unavailable("dial", err)
	}

	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)
	// Unblock the read early if the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	c.log.Debug("conversation: ws send %d bytes (type=%d)", len(data), kind)
	if err := conn.WriteMessage(kind, data); err != nil {
		c.drop(conn)
		return nil, unavailable("write frame", err)
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			return nil, unavailable("read frame", err)
		}
		if mt != websocket.TextMessage {
			c.log.Debug("conversation: ignoring ws frame type %d", mt)
			continue
		}
		reply, err := parseReply(msg, c.log)
		if err != nil {
			return nil, unavailable("parse reply", err)
		}
		return reply, nil
	}
}

func (c *WSClient) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		return nil, err
	}
	c.log.Info("conversation: connected to %s", c.url)
	c.conn = conn
	return conn, nil
}

// drop forgets a broken connection so the next exchange re-dials.
func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// Close sends a close frame and tears down the connection, if any.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return conn.Close()
}
