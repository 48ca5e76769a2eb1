package decision_test

import (
	"testing"

	"github.com/xraph/replydesk/decision"
)

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   decision.ConfidenceInput
		want float64
	}{
		{"grounded", decision.ConfidenceInput{SourceCount: 2, Draft: goodDraft}, 0.8},
		{"ungrounded", decision.ConfidenceInput{SourceCount: 0, Draft: goodDraft}, 0.2},
		{"hedging", decision.ConfidenceInput{SourceCount: 1, Draft: "I think shipping is free over 1000 NTD."}, 0.6},
		{"chinese hedging", decision.ConfidenceInput{SourceCount: 1, Draft: "運費可能是一百元，詳細請參考官網的運費說明頁面。"}, 0.6},
		{"guardrail", decision.ConfidenceInput{SourceCount: 1, Draft: goodDraft, GuardrailTriggered: true}, 0.5},
		{"short", decision.ConfidenceInput{SourceCount: 1, Draft: "Yes."}, 0.7},
		{"clamped at zero", decision.ConfidenceInput{Draft: "maybe", GuardrailTriggered: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decision.CalculateConfidence(tt.in); got != tt.want {
				t.Fatalf("CalculateConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	drafts := []string{"", "ok", goodDraft, "Perhaps shipping is free over 1000 NTD."}
	for _, draft := range drafts {
		for _, guard := range []bool{false, true} {
			without := decision.CalculateConfidence(decision.ConfidenceInput{Draft: draft, GuardrailTriggered: guard})
			with := decision.CalculateConfidence(decision.ConfidenceInput{SourceCount: 1, Draft: draft, GuardrailTriggered: guard})
			if with <= without && without < 1 {
				t.Errorf("draft %q guard %v: source match did not raise score (%v -> %v)", draft, guard, without, with)
			}
			if with < 0 || with > 1 || without < 0 || without > 1 {
				t.Errorf("score out of range: %v %v", without, with)
			}
		}
	}

	plain := decision.CalculateConfidence(decision.ConfidenceInput{SourceCount: 1, Draft: goodDraft})
	hedged := decision.CalculateConfidence(decision.ConfidenceInput{SourceCount: 1, Draft: "Maybe " + goodDraft})
	if hedged >= plain {
		t.Fatalf("hedging did not lower score: %v >= %v", hedged, plain)
	}
}

func TestIsHedging(t *testing.T) {
	for _, s := range []string{"I'm not sure about that", "It might be ready", "也許明天到貨"} {
		if !decision.IsHedging(s) {
			t.Errorf("IsHedging(%q) = false", s)
		}
	}
	for _, s := range []string{"Your order ships tomorrow.", "明天到貨"} {
		if decision.IsHedging(s) {
			t.Errorf("IsHedging(%q) = true", s)
		}
	}
}
