// Package risk flags inbound messages that touch money or need escalation.
package risk

import (
	"regexp"
	"strings"
)

// Level is the sensitivity of an inbound message.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// DefaultMoneyKeywords covers refund and compensation language.
var DefaultMoneyKeywords = []string{
	"refund", "reimburse", "compensation", "compensate", "chargeback", "money back", "return my money",
	"退款", "退費", "退费", "退錢", "退钱", "賠償", "赔偿", "補償", "补偿", "退貨", "退货", "還錢", "还钱",
}

// DefaultEscalationPhrases covers language that should reach a person soon.
var DefaultEscalationPhrases = []string{
	"complaint", "lawyer", "legal action", "speak to a manager", "unacceptable", "report you",
	"投訴", "投诉", "客訴", "客诉", "消保", "律師", "律师", "找主管", "檢舉", "举报",
}

// referenceMarkers indicate a purchase reference even without an explicit
// order keyword.
var referenceMarkers = []string{
	"receipt", "invoice", "transaction", "tracking",
	"發票", "发票", "收據", "收据", "交易", "物流",
}

var (
	orderNumberPattern = regexp.MustCompile(`(?i)(?:order(?:\s*(?:no\.?|number|id))?|訂單(?:編號|号碼|號碼)?|订单(?:编号|号码)?|單號|单号)\s*[:#：]?\s*#?([A-Z0-9][A-Z0-9-]{3,})`)
	hashNumberPattern  = regexp.MustCompile(`#(\d{4,})`)
	longDigitsPattern  = regexp.MustCompile(`\d{4,}`)
)

// Assessment is the result of classifying one message.
type Assessment struct {
	Level           Level    `json:"risk_level"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`

	// MoneyRequest is true when any refund or compensation keyword matched.
	MoneyRequest bool `json:"money_request"`

	// OrderContext is true when an order number or purchase reference is present.
	OrderContext bool `json:"order_context"`

	// OrderNumber is the extracted order reference, if any.
	OrderNumber string `json:"order_number,omitempty"`
}

// Classifier matches messages against curated keyword sets.
type Classifier struct {
	money      []string
	escalation []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMoneyKeywords replaces the refund/compensation keyword set.
func WithMoneyKeywords(words ...string) Option {
	return func(c *Classifier) { c.money = lowerAll(words) }
}

// WithEscalationPhrases replaces the escalation phrase set.
func WithEscalationPhrases(phrases ...string) Option {
	return func(c *Classifier) { c.escalation = lowerAll(phrases) }
}

// NewClassifier creates a Classifier with the default keyword sets.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		money:      lowerAll(DefaultMoneyKeywords),
		escalation: lowerAll(DefaultEscalationPhrases),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify assesses message. Any money keyword makes the message high risk,
// with or without order context.
func (c *Classifier) Classify(message string) Assessment {
	lower := strings.ToLower(message)

	moneyHits := matches(lower, c.money)
	escalationHits := matches(lower, c.escalation)

	a := Assessment{
		Level:        LevelLow,
		MoneyRequest: len(moneyHits) > 0,
		OrderNumber:  OrderNumber(message),
	}
	a.OrderContext = a.OrderNumber != "" || hasReference(lower)
	a.MatchedKeywords = append(moneyHits, escalationHits...)

	switch {
	case a.MoneyRequest:
		a.Level = LevelHigh
	case len(escalationHits) > 0:
		a.Level = LevelMedium
	}
	return a
}

// IsStructuredMoneyRequest is true only when a money keyword and order
// context occur together. Vague money language without a purchase
// reference is not actionable as a refund request.
func (a Assessment) IsStructuredMoneyRequest() bool {
	return a.MoneyRequest && a.OrderContext
}

// OrderNumber extracts an order reference from message, or returns "".
func OrderNumber(message string) string {
	if m := orderNumberPattern.FindStringSubmatch(message); m != nil && containsDigit(m[1]) {
		return m[1]
	}
	if m := hashNumberPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}

func hasReference(lower string) bool {
	if !longDigitsPattern.MatchString(lower) {
		return false
	}
	for _, marker := range referenceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func matches(lower string, words []string) []string {
	var hits []string
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits = append(hits, strings.TrimSpace(w))
		}
	}
	return hits
}

func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
