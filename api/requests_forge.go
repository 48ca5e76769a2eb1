package api

// ---------------------------------------------------------------------------
// Suggestion requests
// ---------------------------------------------------------------------------

// ListSuggestionsForgeRequest binds query parameters for GET /suggestions.
type ListSuggestionsForgeRequest struct {
	TenantID  string `description:"Tenant identifier"                query:"tenantId"`
	ContactID string `description:"Filter by contact"                query:"contactId"`
	Status    string `description:"draft (default), sent or expired" query:"status"`
	Offset    int    `description:"Pagination offset"                query:"offset"`
	Limit     int    `description:"Page size (default 50)"           query:"limit"`
}

// ApproveSuggestionForgeRequest binds the path for POST /suggestions/:suggestionId/approve.
type ApproveSuggestionForgeRequest struct {
	SuggestionID string `description:"Suggestion identifier" path:"suggestionId"`
}

// ListHandoffsForgeRequest binds query parameters for GET /conversations/handoffs.
type ListHandoffsForgeRequest struct {
	TenantID string `description:"Tenant identifier" query:"tenantId"`
}

// ---------------------------------------------------------------------------
// Event requests
// ---------------------------------------------------------------------------

// ListEventsForgeRequest binds query parameters for GET /events.
type ListEventsForgeRequest struct {
	TenantID string `description:"Filter by tenant"                      query:"tenantId"`
	Status   string `description:"pending, processing, done or failed" query:"status"`
	Offset   int    `description:"Pagination offset"                     query:"offset"`
	Limit    int    `description:"Page size (default 50)"                query:"limit"`
}

// GetEventForgeRequest binds the path for GET /events/:eventId.
type GetEventForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// ---------------------------------------------------------------------------
// Knowledge requests
// ---------------------------------------------------------------------------

// CreateEntryForgeRequest binds the body for POST /knowledge.
type CreateEntryForgeRequest struct {
	TenantID string `description:"Tenant identifier"     json:"tenantId"`
	Title    string `description:"Entry title"           json:"title"`
	Category string `description:"Optional category"     json:"category,omitempty"`
	Content  string `description:"Answer text"           json:"content"`
}

// ListEntriesForgeRequest binds query parameters for GET /knowledge.
type ListEntriesForgeRequest struct {
	TenantID string `description:"Tenant identifier" query:"tenantId"`
}

// DeleteEntryForgeRequest binds the path for DELETE /knowledge/:entryId.
type DeleteEntryForgeRequest struct {
	EntryID string `description:"Entry identifier" path:"entryId"`
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// StatsForgeRequest is the empty request for GET /stats.
type StatsForgeRequest struct{}
