package ratelimit

// Scope names who a request is counted against.
type Scope struct {
	BotID     string
	OwnerID   string
	EndUserID string
}

// Identifier picks the most specific scope available: the bot (tenant
// connection) first, then the owning account, then the bare end user.
func Identifier(s Scope) string {
	switch {
	case s.BotID != "":
		return "bot:" + s.BotID + ":" + s.EndUserID
	case s.OwnerID != "":
		return "user:" + s.OwnerID + ":" + s.EndUserID
	default:
		return "line:" + s.EndUserID
	}
}
