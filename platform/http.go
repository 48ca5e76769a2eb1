package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPushURL is the LINE Messaging API push endpoint.
const DefaultPushURL = "https://api.line.me/v2/bot/message/push"

const maxResponseBody = 1024

// HTTPClient pushes messages over HTTP with a bearer access token.
type HTTPClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithURL overrides the push endpoint.
func WithURL(url string) HTTPOption {
	return func(c *HTTPClient) { c.url = url }
}

// WithRateLimit throttles pushes to rps per second with the given burst.
// Zero rps disables throttling.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPClient creates an HTTPClient with the given request timeout.
func NewHTTPClient(timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		url:    DefaultPushURL,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pushBody struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

// Push sends req and returns the result. It never panics on transport
// errors; they are reported in Result.Error.
func (c *HTTPClient) Push(ctx context.Context, req PushRequest) Result {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{Error: fmt.Sprintf("rate limit wait: %v", err)}
		}
	}

	body, err := json.Marshal(pushBody{To: req.To, Messages: req.Messages})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "ReplyDesk/1.0")
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	if req.RetryKey != "" {
		httpReq.Header.Set("X-Line-Retry-Key", req.RetryKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		return Result{Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  latency,
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  latency,
	}
}
