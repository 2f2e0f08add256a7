package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/contextkeys"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Detail: message})
}

// WriteAPIError maps err to its HTTP status and writes it. Internal errors
// are logged and replaced with a generic message.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apierrors.KindOf(err)
	status := apierrors.HTTPStatus(kind)

	if kind == apierrors.KindInternal {
		requestLogger(r).WithError(err).Error("request failed")
		WriteErrorMessage(w, status, "A server error occurred.")
		return
	}

	resp := ErrorResponse{Detail: err.Error()}
	if apiErr, ok := apierrors.AsError(err); ok {
		resp.Detail = apiErr.Message
		resp.Fields = apiErr.Fields
	}
	WriteJSON(w, status, resp)
}

// WriteMethodNotAllowed writes a 405 for read-only resources
func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

func requestLogger(r *http.Request) *logrus.Entry {
	if entry, ok := r.Context().Value(contextkeys.LoggerKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
