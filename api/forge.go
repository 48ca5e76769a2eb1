package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/conversation"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
	"github.com/xraph/replydesk/suggestion"
)

// ForgeAPI registers the review and admin routes on a Forge router. The
// webhook and internal triggers need the raw request body and are served
// by Handler.
type ForgeAPI struct {
	desk *replydesk.Desk
	log  forge.Logger
}

// NewForgeAPI creates a ForgeAPI over d.
func NewForgeAPI(d *replydesk.Desk, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{desk: d, log: log}
}

// RegisterRoutes registers all routes into the given Forge router with
// full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerSuggestionRoutes(router)
	a.registerEventRoutes(router)
	a.registerKnowledgeRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Suggestion routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerSuggestionRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("review"))

	if err := g.GET("/suggestions", a.listSuggestions,
		forge.WithSummary("List suggestions"),
		forge.WithDescription("Returns approvable drafts for a contact, or suggestions in the given status."),
		forge.WithOperationID("listSuggestions"),
		forge.WithRequestSchema(ListSuggestionsForgeRequest{}),
		forge.WithListResponse(suggestion.Suggestion{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listSuggestions route", forge.Error(err))
	}

	if err := g.POST("/suggestions/:suggestionId/approve", a.approveSuggestion,
		forge.WithSummary("Approve suggestion"),
		forge.WithDescription("Sends a draft reply to the contact. A draft is sent at most once."),
		forge.WithOperationID("approveSuggestion"),
		forge.WithResponseSchema(http.StatusOK, "Sent suggestion", suggestion.Suggestion{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register approveSuggestion route", forge.Error(err))
	}

	if err := g.GET("/conversations/handoffs", a.listHandoffs,
		forge.WithSummary("List handoffs"),
		forge.WithDescription("Returns conversations waiting for a person."),
		forge.WithOperationID("listHandoffs"),
		forge.WithRequestSchema(ListHandoffsForgeRequest{}),
		forge.WithListResponse(conversation.Conversation{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listHandoffs route", forge.Error(err))
	}
}

func (a *ForgeAPI) listSuggestions(ctx forge.Context, req *ListSuggestionsForgeRequest) ([]*suggestion.Suggestion, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenantId query parameter is required")
	}

	if req.Status == "" || req.Status == string(suggestion.StatusDraft) {
		drafts, err := a.desk.Suggestions().ListDrafts(ctx.Context(), req.TenantID, req.ContactID)
		if err != nil {
			return nil, mapError(err)
		}
		return drafts, nil
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	status := suggestion.Status(req.Status)
	list, err := a.desk.Store().ListSuggestions(ctx.Context(), suggestion.ListOpts{
		TenantID:  req.TenantID,
		ContactID: req.ContactID,
		Status:    &status,
		Offset:    req.Offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return list, nil
}

func (a *ForgeAPI) approveSuggestion(ctx forge.Context, req *ApproveSuggestionForgeRequest) (*suggestion.Suggestion, error) {
	sugID, err := id.ParseSuggestionID(req.SuggestionID)
	if err != nil {
		return nil, forge.BadRequest("invalid suggestion ID")
	}

	sug, err := a.desk.Approve(ctx.Context(), sugID)
	if err != nil {
		return nil, mapError(err)
	}
	return sug, nil
}

func (a *ForgeAPI) listHandoffs(ctx forge.Context, req *ListHandoffsForgeRequest) ([]*conversation.Conversation, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenantId query parameter is required")
	}

	convs, err := a.desk.Store().ListHandoffs(ctx.Context(), req.TenantID)
	if err != nil {
		return nil, mapError(err)
	}
	return convs, nil
}

// ---------------------------------------------------------------------------
// Event routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEventRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("events"))

	if err := g.GET("/events", a.listEvents,
		forge.WithSummary("List events"),
		forge.WithDescription("Returns inbound events, newest first."),
		forge.WithOperationID("listEvents"),
		forge.WithRequestSchema(ListEventsForgeRequest{}),
		forge.WithListResponse(event.InboundEvent{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEvents route", forge.Error(err))
	}

	if err := g.GET("/events/:eventId", a.getEvent,
		forge.WithSummary("Get event"),
		forge.WithDescription("Returns one inbound event with its status and last error."),
		forge.WithOperationID("getEvent"),
		forge.WithResponseSchema(http.StatusOK, "Event details", event.InboundEvent{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEvent route", forge.Error(err))
	}
}

func (a *ForgeAPI) listEvents(ctx forge.Context, req *ListEventsForgeRequest) ([]*event.InboundEvent, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	opts := event.ListOpts{
		Offset:   req.Offset,
		Limit:    limit,
		TenantID: req.TenantID,
	}
	if req.Status != "" {
		st := event.Status(req.Status)
		if !st.Valid() {
			return nil, forge.BadRequest("invalid status")
		}
		opts.Status = &st
	}

	events, err := a.desk.Store().ListEvents(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

func (a *ForgeAPI) getEvent(ctx forge.Context, req *GetEventForgeRequest) (*event.InboundEvent, error) {
	evtID, err := id.ParseEventID(req.EventID)
	if err != nil {
		return nil, forge.BadRequest("invalid event ID")
	}

	evt, err := a.desk.Store().GetEvent(ctx.Context(), evtID)
	if err != nil {
		return nil, mapError(err)
	}
	return evt, nil
}

// ---------------------------------------------------------------------------
// Knowledge routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerKnowledgeRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("knowledge"))

	if err := g.POST("/knowledge", a.createEntry,
		forge.WithSummary("Create knowledge entry"),
		forge.WithDescription("Adds an answer the pipeline can retrieve for a tenant."),
		forge.WithOperationID("createEntry"),
		forge.WithRequestSchema(CreateEntryForgeRequest{}),
		forge.WithCreatedResponse(knowledge.Entry{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createEntry route", forge.Error(err))
	}

	if err := g.GET("/knowledge", a.listEntries,
		forge.WithSummary("List knowledge entries"),
		forge.WithDescription("Returns every knowledge entry of a tenant."),
		forge.WithOperationID("listEntries"),
		forge.WithRequestSchema(ListEntriesForgeRequest{}),
		forge.WithListResponse(knowledge.Entry{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEntries route", forge.Error(err))
	}

	if err := g.DELETE("/knowledge/:entryId", a.deleteEntry,
		forge.WithSummary("Delete knowledge entry"),
		forge.WithDescription("Removes a knowledge entry."),
		forge.WithOperationID("deleteEntry"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteEntry route", forge.Error(err))
	}
}

func (a *ForgeAPI) createEntry(ctx forge.Context, req *CreateEntryForgeRequest) (*knowledge.Entry, error) {
	if req.TenantID == "" || req.Title == "" || req.Content == "" {
		return nil, forge.BadRequest("tenantId, title and content are required")
	}

	e := &knowledge.Entry{
		Entity:   entity.New(),
		ID:       id.NewEntryID(),
		TenantID: req.TenantID,
		Title:    req.Title,
		Category: req.Category,
		Content:  req.Content,
	}
	if err := a.desk.Store().PutEntry(ctx.Context(), e); err != nil {
		return nil, mapError(err)
	}

	err := ctx.JSON(http.StatusCreated, e)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listEntries(ctx forge.Context, req *ListEntriesForgeRequest) ([]*knowledge.Entry, error) {
	if req.TenantID == "" {
		return nil, forge.BadRequest("tenantId query parameter is required")
	}

	entries, err := a.desk.Store().ListEntries(ctx.Context(), req.TenantID)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

func (a *ForgeAPI) deleteEntry(ctx forge.Context, req *DeleteEntryForgeRequest) (*knowledge.Entry, error) {
	entryID, err := id.ParseEntryID(req.EntryID)
	if err != nil {
		return nil, forge.BadRequest("invalid entry ID")
	}

	if delErr := a.desk.Store().DeleteEntry(ctx.Context(), entryID); delErr != nil {
		return nil, mapError(delErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("Event statistics"),
		forge.WithDescription("Returns event counts per status."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "Event statistics", StatsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsResponse, error) {
	counts, err := a.desk.Stats(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return toStats(counts), nil
}
