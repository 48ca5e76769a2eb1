// Package api provides the HTTP surface of a Desk: the platform webhook,
// the internal process and drain triggers, and the review routes.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xraph/replydesk"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Secrets authenticate the internal triggers. An empty secret disables the
// corresponding scheme.
type Secrets struct {
	// ProcessSecret is the bearer token for POST /internal/process.
	ProcessSecret string

	// QueueSecret signs queue callbacks to POST /internal/process.
	QueueSecret string

	// QueueTolerance is the accepted clock skew of queue signatures.
	QueueTolerance time.Duration

	// DrainSecret is the bearer token for POST /internal/drain.
	DrainSecret string
}

// Handler is the root HTTP handler.
type Handler struct {
	desk    *replydesk.Desk
	secrets Secrets
	logger  *slog.Logger
	mux     *http.ServeMux
	now     func() time.Time
}

// NewHandler creates a new handler over d.
func NewHandler(d *replydesk.Desk, secrets Secrets, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if secrets.QueueTolerance <= 0 {
		secrets.QueueTolerance = 5 * time.Minute
	}

	h := &Handler{
		desk:    d,
		secrets: secrets,
		logger:  logger,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Platform
	h.mux.HandleFunc("POST /webhooks/{tenantId}", h.webhook)

	// Internal triggers
	h.mux.HandleFunc("POST /internal/process", h.process)
	h.mux.HandleFunc("POST /internal/drain", h.drain)

	// Review
	h.mux.HandleFunc("GET /suggestions", h.listSuggestions)
	h.mux.HandleFunc("POST /suggestions/{id}/approve", h.approveSuggestion)
	h.mux.HandleFunc("GET /conversations/handoffs", h.listHandoffs)

	// Events
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)

	// Knowledge
	h.mux.HandleFunc("POST /knowledge", h.putEntry)
	h.mux.HandleFunc("GET /knowledge", h.listEntries)
	h.mux.HandleFunc("DELETE /knowledge/{id}", h.deleteEntry)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)
	h.mux.HandleFunc("GET /healthz", h.healthz)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.InfoContext(r.Context(), "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, replydesk.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, replydesk.ErrEventNotFound),
		errors.Is(err, replydesk.ErrSuggestionNotFound),
		errors.Is(err, replydesk.ErrConversationNotFound),
		errors.Is(err, replydesk.ErrEntryNotFound),
		errors.Is(err, replydesk.ErrCredentialNotFound):
		return http.StatusNotFound
	case errors.Is(err, replydesk.ErrSuggestionNotDraft),
		errors.Is(err, replydesk.ErrDuplicateEvent):
		return http.StatusConflict
	case errors.Is(err, replydesk.ErrSuggestionExpired):
		return http.StatusGone
	case errors.Is(err, replydesk.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, replydesk.ErrSend):
		return http.StatusBadGateway
	case errors.Is(err, replydesk.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
