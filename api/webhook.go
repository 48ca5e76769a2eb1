package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/dispatch"
)

// SignatureHeader carries the platform's base64 HMAC-SHA256 of the body.
const SignatureHeader = "X-Line-Signature"

// webhook acknowledges every verified call with 200, whatever happened to
// the individual events, so the platform does not retry. Only a signature
// failure is refused; an unreadable or oversized body is logged and dropped.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenantId")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	r.Body.Close()
	if err != nil {
		// A non-200 makes the platform redeliver the same oversized body.
		h.logger.WarnContext(r.Context(), "webhook body dropped", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusOK, dispatch.Result{})
		return
	}

	res, err := h.desk.Dispatch(r.Context(), tenantID, body, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, replydesk.ErrSignatureInvalid) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		h.logger.ErrorContext(r.Context(), "webhook dispatch failed", "tenant_id", tenantID, "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}
