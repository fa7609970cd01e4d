// Package httputil holds the JSON response helpers shared by handlers and
// middleware.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// MaxBodyBytes bounds request bodies. Image uploads arrive as data URLs.
const MaxBodyBytes = 16 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes a structured error body.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	resp := ErrorResponse{Code: code, Error: message, Details: details}
	if r != nil {
		resp.TraceID = logger.GetTraceID(r.Context())
	}
	WriteJSON(w, status, resp)
}

// WriteError renders err. Errors without a ServiceError in their chain become
// a 500 with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	se := apperrors.GetServiceError(err)
	if se == nil {
		se = apperrors.Internal("Error interno del servidor.", err)
	}
	WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.BadRequest("cuerpo de la petición vacío")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return apperrors.BadRequest("cuerpo de la petición vacío")
		}
		return apperrors.BadRequest(fmt.Sprintf("JSON no válido: %v", err))
	}
	return nil
}
