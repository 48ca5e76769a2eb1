package api

import (
	"net/http"

	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
)

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset:   queryInt(r, "offset", 0),
		Limit:    queryInt(r, "limit", 50),
		TenantID: queryParam(r, "tenantId"),
	}
	if s := queryParam(r, "status"); s != "" {
		st := event.Status(s)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		opts.Status = &st
	}

	events, err := h.desk.Store().ListEvents(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, err := id.ParseEventID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	evt, err := h.desk.Store().GetEvent(r.Context(), evtID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evt)
}
