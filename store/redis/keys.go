package redis

// Key prefixes for primary entity storage.
const (
	prefixEvent        = "replydesk:evt:"
	prefixEventState   = "replydesk:evt:state:"
	prefixCredential   = "replydesk:cred:" // + tenant ID
	prefixSuggestion   = "replydesk:sug:"
	prefixConversation = "replydesk:conv:" // + tenant ID + ":" + contact ID
	prefixMessage      = "replydesk:msg:"
	prefixEntry        = "replydesk:kb:"
)

// Key prefixes for unique indexes.
const (
	uniqueEventExternal = "replydesk:u:evt:ext:" // + tenant ID + ":" + external ID
)

// Key prefixes for sorted set indexes.
const (
	zEventAll        = "replydesk:z:evt:all"
	zEventTenant     = "replydesk:z:evt:tenant:" // + tenant ID
	zEventStatus     = "replydesk:z:evt:status:" // + status, scored by updated_at
	zSuggestionAll   = "replydesk:z:sug:all"
	zSuggestionDraft = "replydesk:z:sug:draft" // scored by expires_at
	zHandoffTenant   = "replydesk:z:conv:handoff:"
	zMessageContact  = "replydesk:z:msg:" // + tenant ID + ":" + contact ID
)

// Key prefixes for set indexes.
const (
	sEntryTenant = "replydesk:s:kb:tenant:" // + tenant ID
)

// Key prefixes for the shared pipeline rails.
const (
	prefixIdempotency = "replydesk:idem:"
	prefixRateLimit   = "replydesk:rl:"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// contactKey joins a tenant and contact for per-contact keys.
func contactKey(prefix, tenantID, contactID string) string {
	return prefix + tenantID + ":" + contactID
}
