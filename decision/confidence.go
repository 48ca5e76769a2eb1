package decision

import (
	"math"
	"regexp"
	"unicode/utf8"
)

// Confidence adjustments applied by CalculateConfidence.
const (
	baseConfidence   = 0.5
	sourceBonus      = 0.3
	noSourcePenalty  = 0.3
	hedgingPenalty   = 0.2
	guardrailPenalty = 0.3
	shortPenalty     = 0.1

	// shortDraftRunes is the length below which a draft is considered too
	// short to stand on its own.
	shortDraftRunes = 20
)

var hedgingPattern = regexp.MustCompile(`(?i)(\b(?:i'?m not sure|not certain|i think|maybe|perhaps|possibly|might be|i believe|probably|unclear|i don'?t know|can'?t confirm|cannot confirm)\b|不確定|不确定|可能|也許|也许|大概|或許|或许|好像|不太清楚|無法確認|无法确认)`)

// ConfidenceInput holds the signals that feed CalculateConfidence.
type ConfidenceInput struct {
	SourceCount        int
	Draft              string
	GuardrailTriggered bool
}

// CalculateConfidence scores a candidate draft in [0,1]. It is deterministic
// and independent of how the draft was produced.
func CalculateConfidence(in ConfidenceInput) float64 {
	score := baseConfidence

	if in.SourceCount > 0 {
		score += sourceBonus
	} else {
		score -= noSourcePenalty
	}
	if IsHedging(in.Draft) {
		score -= hedgingPenalty
	}
	if in.GuardrailTriggered {
		score -= guardrailPenalty
	}
	if utf8.RuneCountInString(in.Draft) < shortDraftRunes {
		score -= shortPenalty
	}

	score = math.Round(score*100) / 100
	return math.Max(0, math.Min(1, score))
}

// IsHedging reports whether text contains uncertainty phrasing.
func IsHedging(text string) bool {
	return hedgingPattern.MatchString(text)
}
