package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string              `json:"error"`
	Type  string              `json:"type"`
	Data  []common.FieldError `json:"data,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// classify maps an error to its HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, common.ErrConflict):
		return http.StatusUnprocessableEntity, "ALREADY_EXISTS"
	case errors.Is(err, common.ErrCredentialMismatch):
		return http.StatusUnprocessableEntity, "INVALID_CREDENTIALS"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := classify(err)

	resp := ErrorResponse{Type: typ, Data: common.FieldsOf(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		resp.Error = common.ErrInternal.Error()
	} else {
		resp.Error = common.MessageOf(err)
	}

	_ = writeJSON(w, status, resp)
}

// maxBodyBytes caps request bodies; a user payload is two short strings.
const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// decodeUser reads a {"user": {...}} body of at most maxBodyBytes.
func decodeUser(w http.ResponseWriter, r *http.Request) (userBody, error) {
	var body userBody
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return body, errBodyTooLarge
		}
		return body, common.NewDetailedError(common.ErrValidation, fmt.Sprintf("invalid JSON: %v", err))
	}
	return body, nil
}
