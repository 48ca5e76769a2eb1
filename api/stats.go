package api

import (
	"net/http"

	"github.com/xraph/replydesk/event"
)

// StatsResponse is the event count per status.
type StatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
}

func toStats(counts map[event.Status]int64) *StatsResponse {
	return &StatsResponse{
		Pending:    counts[event.StatusPending],
		Processing: counts[event.StatusProcessing],
		Done:       counts[event.StatusDone],
		Failed:     counts[event.StatusFailed],
	}
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.desk.Stats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStats(counts))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Store().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
