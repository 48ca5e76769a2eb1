// Package platform sends outbound messages through the chat platform's
// push API.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrSend is the base error for a failed outbound send.
var ErrSend = errors.New("platform: send failed")

// SendError carries the upstream response of a failed send.
type SendError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *SendError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("platform: send failed: %s", e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("platform: send failed: status %d", e.StatusCode)
	default:
		return ErrSend.Error()
	}
}

// Unwrap lets errors.Is match ErrSend.
func (e *SendError) Unwrap() error { return ErrSend }

// Message is one outbound chat message.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage builds a text Message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// PushRequest is a push to a single recipient.
type PushRequest struct {
	AccessToken string
	To          string
	Messages    []Message

	// RetryKey lets the platform deduplicate retried pushes.
	RetryKey string
}

// Result holds the outcome of a single push attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// OK reports whether the push was accepted.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300 && r.Error == ""
}

// Err converts a failed Result into a *SendError, or nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &SendError{StatusCode: r.StatusCode, Body: r.Response, Message: r.Error}
}

// Client pushes messages to the platform.
type Client interface {
	Push(ctx context.Context, req PushRequest) Result
}
