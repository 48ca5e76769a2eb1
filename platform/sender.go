package platform

import (
	"context"
	"log/slog"
	"time"
)

// Sender pushes a request, retrying within the Retrier's budget.
type Sender struct {
	client  Client
	retrier *Retrier
	logger  *slog.Logger
}

// NewSender creates a Sender.
func NewSender(client Client, retrier *Retrier, logger *slog.Logger) *Sender {
	if retrier == nil {
		retrier = NewRetrier(1, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{client: client, retrier: retrier, logger: logger}
}

// Send pushes req until it is accepted, fails permanently, or the attempt
// budget or ctx runs out. It returns the number of attempts made and a
// *SendError on failure.
func (s *Sender) Send(ctx context.Context, req PushRequest) (int, error) {
	var last Result
	for attempt := 1; ; attempt++ {
		last = s.client.Push(ctx, req)

		switch s.retrier.Decide(last, attempt) {
		case Sent:
			return attempt, nil
		case Fail:
			return attempt, last.Err()
		}

		wait := s.retrier.Backoff(attempt)
		s.logger.WarnContext(ctx, "push failed, retrying",
			"to", req.To,
			"attempt", attempt,
			"status_code", last.StatusCode,
			"backoff", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, &SendError{StatusCode: last.StatusCode, Body: last.Response, Message: ctx.Err().Error()}
		case <-timer.C:
		}
	}
}
