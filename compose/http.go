package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBody = 64 * 1024

// HTTP calls a remote compose service with a JSON Request and expects a
// JSON Reply. The guardrail is re-applied locally to whatever comes back.
type HTTP struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTP creates an HTTP composer.
func NewHTTP(url, token string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// Compose posts req to the remote service.
func (h *HTTP) Compose(ctx context.Context, req Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrCompose, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrCompose, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompose, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrCompose, resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrCompose, err)
	}
	reply.GuardrailTriggered = reply.GuardrailTriggered || Guard(reply.Text)
	return &reply, nil
}
