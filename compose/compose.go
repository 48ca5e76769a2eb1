// Package compose produces candidate reply drafts. The generative step is
// an external capability; this package defines its contract and ships a
// deterministic grounded composer plus an HTTP client for a remote one.
package compose

import (
	"context"
	"errors"

	"github.com/xraph/replydesk/risk"
)

// ErrCompose is returned when no draft could be produced.
var ErrCompose = errors.New("compose: draft unavailable")

// Request is the input to a composer.
type Request struct {
	TenantID  string     `json:"tenant_id"`
	ContactID string     `json:"contact_id"`
	Message   string     `json:"message"`
	Knowledge string     `json:"knowledge"`
	Sources   int        `json:"sources"`
	RiskLevel risk.Level `json:"risk_level"`
}

// Reply is a candidate draft. GuardrailTriggered is set when the draft
// tripped a safety filter and must not be trusted as-is.
type Reply struct {
	Text               string `json:"text"`
	GuardrailTriggered bool   `json:"guardrail_triggered"`
}

// Composer produces a candidate draft for an inbound message.
type Composer interface {
	Compose(ctx context.Context, req Request) (*Reply, error)
}
