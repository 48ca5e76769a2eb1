package api

import (
	"net/http"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
	"github.com/xraph/replydesk/knowledge"
)

type putEntryRequest struct {
	TenantID string `json:"tenantId"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}

func (h *Handler) putEntry(w http.ResponseWriter, r *http.Request) {
	var req putEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" || req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "tenantId, title and content are required")
		return
	}

	e := &knowledge.Entry{
		Entity:   entity.New(),
		ID:       id.NewEntryID(),
		TenantID: req.TenantID,
		Title:    req.Title,
		Category: req.Category,
		Content:  req.Content,
	}
	if err := h.desk.Store().PutEntry(r.Context(), e); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	tenantID := queryParam(r, "tenantId")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	entries, err := h.desk.Store().ListEntries(r.Context(), tenantID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry ID")
		return
	}

	if err := h.desk.Store().DeleteEntry(r.Context(), entryID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
