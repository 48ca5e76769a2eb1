package api

import (
	"net/http"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/suggestion"
)

// listSuggestions returns drafts still approvable for a contact, or every
// suggestion of a tenant when status is given.
func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenantId")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	status := queryParam(r, "status")
	if status == "" || status == string(suggestion.StatusDraft) {
		drafts, err := h.desk.Suggestions().ListDrafts(r.Context(), tenantID, queryParam(r, "contactId"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, drafts)
		return
	}

	st := suggestion.Status(status)
	list, err := h.desk.Store().ListSuggestions(r.Context(), suggestion.ListOpts{
		TenantID:  tenantID,
		ContactID: queryParam(r, "contactId"),
		Status:    &st,
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) approveSuggestion(w http.ResponseWriter, r *http.Request) {
	sugID, err := id.ParseSuggestionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid suggestion ID")
		return
	}

	sug, err := h.desk.Approve(r.Context(), sugID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (h *Handler) listHandoffs(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenantId")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	convs, err := h.desk.Store().ListHandoffs(r.Context(), tenantID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}
