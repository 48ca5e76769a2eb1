package compose

import "regexp"

// guardrailPattern flags drafts that promise money or outcomes a person
// must sign off on.
var guardrailPattern = regexp.MustCompile(`(?i)(\b(?:guarantee[ds]?|we will refund|full refund|refund (?:has been|is) (?:issued|processed)|compensate you|legal advice)\b|保證|一定退|全額退款|全额退款|已退款|賠償您|赔偿您)`)

// Guard reports whether text trips the safety filter.
func Guard(text string) bool {
	return guardrailPattern.MatchString(text)
}
