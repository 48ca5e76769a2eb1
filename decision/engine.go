// Package decision chooses how to answer an inbound message: send
// automatically, draft for review, ask a clarifying question, or hand the
// conversation to a person.
package decision

import (
	"strings"

	"github.com/xraph/replydesk/risk"
)

// DefaultThreshold is the minimum confidence for an automatic reply.
const DefaultThreshold = 0.6

// Action is the outcome of a decision.
type Action string

const (
	ActionAuto    Action = "AUTO"
	ActionSuggest Action = "SUGGEST"
	ActionAsk     Action = "ASK"
	ActionHandoff Action = "HANDOFF"
)

// Input is everything the engine needs to decide.
type Input struct {
	RiskLevel      risk.Level
	SourceCount    int
	Confidence     float64
	CandidateDraft string

	// MoneyRequest and StructuredMoneyRequest come from the risk
	// assessment; the latter also requires an order reference.
	MoneyRequest           bool
	StructuredMoneyRequest bool
	OrderNumber            string

	// Threshold overrides the engine threshold when positive.
	Threshold float64
}

// Decision is the engine output. AskText is set for ASK, Draft for AUTO and
// SUGGEST.
type Decision struct {
	Action     Action  `json:"action"`
	AskText    string  `json:"ask_text,omitempty"`
	Draft      string  `json:"draft,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Templates are the canned texts the engine uses when it cannot rely on a
// composed draft. ConfirmOrder receives the order number via %s.
type Templates struct {
	RequestOrderNumber string
	ConfirmOrder       string
	Clarify            string
	Holding            string
}

// DefaultTemplates returns the built-in English templates.
func DefaultTemplates() Templates {
	return Templates{
		RequestOrderNumber: "To look into this for you, could you share your order number?",
		ConfirmOrder:       "Thanks. Could you confirm that order number %s is the order this request is about?",
		Clarify:            "Could you tell us a little more about what you need so we can help?",
		Holding:            "Thanks for reaching out. A team member will review your request and reply shortly.",
	}
}

// Engine applies the decision rules.
type Engine struct {
	threshold float64
	templates Templates
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the default AUTO threshold.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// WithTemplates replaces the canned texts.
func WithTemplates(t Templates) Option {
	return func(e *Engine) { e.templates = t }
}

// NewEngine creates an Engine with DefaultThreshold and DefaultTemplates.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{threshold: DefaultThreshold, templates: DefaultTemplates()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the default AUTO threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Decide maps in to an action. High-risk input never yields AUTO, and
// neither does input without knowledge sources.
func (e *Engine) Decide(in Input) Decision {
	threshold := e.threshold
	if in.Threshold > 0 {
		threshold = in.Threshold
	}
	draft := strings.TrimSpace(in.CandidateDraft)
	d := Decision{Confidence: in.Confidence}

	switch {
	case in.RiskLevel == risk.LevelHigh:
		switch {
		case in.MoneyRequest && !in.StructuredMoneyRequest:
			return e.ask(d, e.templates.RequestOrderNumber, "money request without order context")
		case in.SourceCount == 0:
			// A reviewer should still see a proposal.
			if draft == "" {
				draft = e.templates.Holding
			}
			return suggest(d, draft, "high risk without sources")
		case draft != "":
			return suggest(d, draft, "high risk")
		case in.MoneyRequest && in.OrderNumber != "":
			return e.ask(d, confirmOrder(e.templates.ConfirmOrder, in.OrderNumber), "high risk money request")
		default:
			return e.ask(d, e.templates.Clarify, "high risk without draft")
		}

	case in.SourceCount == 0:
		if in.RiskLevel == risk.LevelMedium {
			d.Action = ActionHandoff
			d.Reason = "escalation without sources"
			return d
		}
		return e.ask(d, e.templates.Clarify, "no sources")

	case in.RiskLevel == risk.LevelLow && in.Confidence >= threshold && draft != "":
		d.Action = ActionAuto
		d.Draft = draft
		d.Reason = "confident and grounded"
		return d

	case draft != "":
		return suggest(d, draft, "below threshold")

	case in.RiskLevel == risk.LevelMedium:
		d.Action = ActionHandoff
		d.Reason = "escalation without draft"
		return d

	default:
		return e.ask(d, e.templates.Clarify, "no usable draft")
	}
}

func (e *Engine) ask(d Decision, text, reason string) Decision {
	d.Action = ActionAsk
	d.AskText = text
	d.Reason = reason
	return d
}

func suggest(d Decision, draft, reason string) Decision {
	d.Action = ActionSuggest
	d.Draft = draft
	d.Reason = reason
	return d
}

func confirmOrder(tmpl, orderNumber string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return strings.Replace(tmpl, "%s", orderNumber, 1)
}
