package compose

import (
	"context"
	"strings"
)

// DefaultMaxDraftRunes bounds grounded drafts.
const DefaultMaxDraftRunes = 400

// Grounded builds a draft directly from the retrieved knowledge text. It
// makes no network calls.
type Grounded struct {
	maxRunes int
}

// NewGrounded creates a Grounded composer. maxRunes <= 0 uses
// DefaultMaxDraftRunes.
func NewGrounded(maxRunes int) *Grounded {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxDraftRunes
	}
	return &Grounded{maxRunes: maxRunes}
}

// Compose returns the body of the best-ranked knowledge entry. Without
// knowledge it returns an empty draft.
func (g *Grounded) Compose(_ context.Context, req Request) (*Reply, error) {
	if req.Sources == 0 || strings.TrimSpace(req.Knowledge) == "" {
		return &Reply{}, nil
	}

	// Knowledge is "title\ncontent\n\ntitle\ncontent...": keep the first
	// entry's content.
	first, _, _ := strings.Cut(req.Knowledge, "\n\n")
	_, body, found := strings.Cut(first, "\n")
	if !found {
		body = first
	}
	body = strings.TrimSpace(body)

	if runes := []rune(body); len(runes) > g.maxRunes {
		body = strings.TrimSpace(string(runes[:g.maxRunes])) + "…"
	}

	return &Reply{Text: body, GuardrailTriggered: Guard(body)}, nil
}
