package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/duetapp/duet/internal/entity"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeEngineError maps an entity engine error onto the HTTP surface. The
// error code travels as-is in the envelope; only the status code is derived
// here.
func writeEngineError(w http.ResponseWriter, err error) {
	var e *entity.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	status := http.StatusInternalServerError
	switch e.Code {
	case entity.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case entity.CodeCoupleContextUnavailable:
		status = http.StatusConflict
	case entity.CodeForbidden:
		status = http.StatusForbidden
	case entity.CodeNotFound:
		status = http.StatusNotFound
	case entity.CodeRemoteStoreFailure:
		status = http.StatusBadGateway
	case entity.CodeInvalidArgument:
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, string(e.Code), e.Message)
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
