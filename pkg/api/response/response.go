// Package response writes JSON bodies and maps domain errors onto HTTP statuses.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"alphaseeker/pkg/core/pipeline"
	"alphaseeker/pkg/core/validate"
	"alphaseeker/pkg/models"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 4 << 20

// StatusClientClosed is logged when the caller went away before a result was ready.
const StatusClientClosed = 499

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON request body into v. Errors are client errors.
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// BadRequest writes a 400 for a malformed request.
func BadRequest(w http.ResponseWriter, err error) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error(), Kind: string(pipeline.KindInvalidInput)})
}

// Error maps err onto a status and writes it. It returns the status written.
func Error(w http.ResponseWriter, err error) int {
	status, body := Classify(err)
	JSON(w, status, body)
	return status
}

// Classify returns the status and body for err.
func Classify(err error) (int, ErrorBody) {
	body := ErrorBody{Error: err.Error(), Kind: string(pipeline.KindOf(err))}

	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		body.Reason = verr.Reason
		body.Fragment = verr.Fragment
		if body.Kind == "" {
			body.Kind = string(pipeline.KindInvalidModelOutput)
		}
		return http.StatusUnprocessableEntity, body
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusBadGateway, body
	case errors.Is(err, models.ErrStorage):
		return http.StatusInternalServerError, body
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	case pipeline.IsCancelled(err):
		return StatusClientClosed, body
	}
	return http.StatusInternalServerError, body
}
