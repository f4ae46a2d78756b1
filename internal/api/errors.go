package api

import (
	"errors"
	"net/http"

	"fedquery/internal/domain"
)

// errorBody is the JSON error envelope shared by all endpoints.
type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps a pipeline error to an HTTP response. Questions the
// service could not interpret are client errors; store failures after
// retries are gateway errors; everything else is internal.
func writeError(w http.ResponseWriter, err error) {
	var intentErr *domain.IntentParseError
	var ambiguousErr *domain.AmbiguousStrategyError
	var planErr *domain.PlanValidationError
	var storeErr *domain.StoreError

	switch {
	case errors.As(err, &intentErr):
		body := errorBody{Code: "intent_parse_error", Message: intentErr.Message}
		if len(intentErr.Unknown) > 0 || len(intentErr.Clarifications) > 0 {
			body.Details = map[string]interface{}{}
			if len(intentErr.Unknown) > 0 {
				body.Details["unknown_fields"] = intentErr.Unknown
			}
			if len(intentErr.Clarifications) > 0 {
				body.Details["clarifications"] = intentErr.Clarifications
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)

	case errors.As(err, &ambiguousErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Code:    "ambiguous_strategy",
			Message: ambiguousErr.Error(),
		})

	case errors.As(err, &planErr):
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "plan_invalid",
			Message: planErr.Message,
		})

	case errors.As(err, &storeErr):
		if storeErr.Transient() {
			writeJSON(w, http.StatusBadGateway, errorBody{
				Code:    "store_unavailable",
				Message: storeErr.Error(),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "store_failed",
			Message: storeErr.Error(),
		})

	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}
