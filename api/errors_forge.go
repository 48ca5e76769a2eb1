package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/replydesk"
)

// mapError converts replydesk sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, replydesk.ErrEventNotFound),
		errors.Is(err, replydesk.ErrSuggestionNotFound),
		errors.Is(err, replydesk.ErrConversationNotFound),
		errors.Is(err, replydesk.ErrEntryNotFound),
		errors.Is(err, replydesk.ErrCredentialNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, replydesk.ErrSuggestionNotDraft):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, replydesk.ErrSuggestionExpired):
		return forge.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, replydesk.ErrSend):
		return forge.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, replydesk.ErrStoreUnavailable):
		return forge.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return forge.InternalError(err)
	}
}
