package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/signature"
)

// Header names used by HTTP delivery to the process trigger.
const (
	HeaderSignature = "X-Queue-Signature"
	HeaderTimestamp = "X-Queue-Timestamp"
)

// Message is the body posted to the process trigger.
type Message struct {
	EventID string `json:"eventId"`
}

// HTTP enqueues by posting a signed Message to a process trigger, for
// deployments where another instance or a hosted queue runs the worker.
type HTTP struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
}

// NewHTTP creates an HTTP enqueuer.
func NewHTTP(url, secret string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Enqueue posts evtID to the trigger. Any non-2xx response is an error.
func (h *HTTP) Enqueue(ctx context.Context, evtID id.ID) error {
	body, err := json.Marshal(Message{EventID: evtID.String()})
	if err != nil {
		return fmt.Errorf("queue: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("queue: create request: %w", err)
	}
	ts := h.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature.Sign(body, h.secret, ts))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("queue: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("queue: trigger returned status %d", resp.StatusCode)
	}
	return nil
}
