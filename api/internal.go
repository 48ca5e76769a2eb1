package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/queue"
	"github.com/xraph/replydesk/signature"
)

type processResponse struct {
	EventID string `json:"eventId"`
	Outcome string `json:"outcome"`
}

type drainResponse struct {
	Drained int `json:"drained"`
}

// process runs one event on behalf of the queue. Delivering the same id
// twice is harmless: the second call finds the event claimed or terminal.
func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	r.Body.Close()
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if !h.authorizeProcess(r, body) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var msg queue.Message
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	evtID, err := id.ParseEventID(msg.EventID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}

	// A queue that hangs up early must not cancel a reply mid-send. The
	// worker bounds the run with its own timeout.
	outcome, err := h.desk.Process(context.WithoutCancel(r.Context()), evtID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{EventID: evtID.String(), Outcome: string(outcome)})
}

func (h *Handler) authorizeProcess(r *http.Request, body []byte) bool {
	if h.secrets.ProcessSecret != "" && signature.VerifyBearer(r.Header.Get("Authorization"), h.secrets.ProcessSecret) {
		return true
	}
	sig := r.Header.Get(queue.HeaderSignature)
	if h.secrets.QueueSecret == "" || sig == "" {
		return false
	}
	err := signature.VerifyTimestamped(body, h.secrets.QueueSecret,
		r.Header.Get(queue.HeaderTimestamp), sig, h.secrets.QueueTolerance, h.now())
	if err != nil {
		h.logger.WarnContext(r.Context(), "queue signature rejected", "error", err)
		return false
	}
	return true
}

func (h *Handler) drain(w http.ResponseWriter, r *http.Request) {
	if h.secrets.DrainSecret == "" || !signature.VerifyBearer(r.Header.Get("Authorization"), h.secrets.DrainSecret) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	n, err := h.desk.Drain(context.WithoutCancel(r.Context()))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drainResponse{Drained: n})
}
