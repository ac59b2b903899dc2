// Package shared holds the response helpers every handler uses, so the
// wire shape of success and error bodies stays uniform across routes.
package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/requestcontext"
)

type errorBody struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details,omitempty"`
		RequestID string         `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a coded error to its status line and a stable JSON
// shape. Uncoded errors surface as 500 with a generic message so
// internals never leak to callers.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.HTTPStatus(code)

	var body errorBody
	body.Error.Code = string(code)
	body.Error.RequestID = requestcontext.RequestID(r.Context())
	if code == dErrors.CodeInternal {
		body.Error.Message = "internal error"
		slog.ErrorContext(r.Context(), "request failed",
			"error", err, "path", r.URL.Path)
	} else {
		var coded *dErrors.Error
		if errors.As(err, &coded) {
			body.Error.Message = coded.Message
		} else {
			body.Error.Message = err.Error()
		}
		body.Error.Details = dErrors.DetailsOf(err)
	}

	WriteJSON(w, status, body)
}

// DecodeJSON parses a request body into dst, returning a coded
// validation error on malformed input.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body")
	}
	return nil
}
