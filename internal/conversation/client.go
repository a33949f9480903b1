package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Compile-time interface check.
var _ domain.Conversation = (*Client)(nil)

// DefaultTimeout bounds one round trip to the conversation service.
const DefaultTimeout = 30 * time.Second

// uploadName is the filename attached to the multipart "file" field.
const uploadName = "recording.wav"

// maxReplyBytes caps how much of a reply body is read.
const maxReplyBytes = 32 << 20

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// Client posts captured audio to {baseURL}/conversation/ as multipart
// form content. One submission is one attempt: there is no retry.
type Client struct {
	endpoint string
	http     *http.Client
	log      *logger.Logger
	inflight atomic.Bool
}

// NewClient creates a conversation client for the service at baseURL
// (e.g. "http://localhost:8000").
func NewClient(baseURL string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/conversation/",
		http:     &http.Client{Timeout: DefaultTimeout},
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the full URL submissions are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Submit uploads the payload and waits for the reply. It returns
// domain.ErrBusy if a previous Submit has not returned yet; every other
// failure wraps domain.ErrConversationUnavailable.
func (c *Client) Submit(ctx context.Context, payload domain.AudioPayload) (*domain.ConversationReply, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer c.inflight.Store(false)

	body, contentType, err := encodeForm(payload)
	if err != nil {
		return nil, unavailable("encode form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, unavailable("create request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("conversation: POST %s (%d bytes of %s)", c.endpoint, len(payload.Data), payload.MIMEType)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, unavailable("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable("status", fmt.Errorf("%s: %s", resp.Status, truncate(string(respBody), 200)))
	}

	reply, err := parseReply(respBody, c.log)
	if err != nil {
		return nil, unavailable("parse reply", err)
	}

	c.log.Debug("conversation: reply in %s (%s, %d audio bytes): %s",
		time.Since(start).Round(time.Millisecond), reply.State(), len(reply.AudioOutput), truncate(reply.ResponseText, 80))
	return reply, nil
}

// encodeForm builds the multipart body with a single "file" part. The
// part carries the payload's own MIME type; the service rejects anything
// that is not audio/*.
func encodeForm(payload domain.AudioPayload) (io.Reader, string, error) {
	if len(payload.Data) == 0 {
		return nil, "", errors.New("empty payload")
	}
	mimeType := payload.MIMEType
	if mimeType == "" {
		mimeType = domain.MIMETypeWAV
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, uploadName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
