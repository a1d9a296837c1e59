package api

import (
	"encoding/json"
	"net/http"

	"github.com/paper-trader/internal/errors"
)

// errorBody is the JSON error envelope
type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data) // nolint:errcheck // response already committed
	}
}

// respondError maps a service error onto the JSON error envelope
func respondError(w http.ResponseWriter, err error) {
	categorized := errors.Categorize(err)

	respondJSON(w, categorized.StatusCode, ErrorResponse{
		Error: errorBody{
			Code:    categorized.Code,
			Message: categorized.Message,
			Details: categorized.Details,
		},
	})
}

// respondBadRequest sends a 400 with a fixed code
func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: errorBody{
			Code:    "INVALID_INPUT",
			Message: message,
		},
	})
}

// parseJSONBody parses a JSON request body, rejecting unknown fields
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
