package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/room"
)

// Envelope is the uniform response shape for every endpoint.
// Success responses carry data; failures carry a message and never
// leak internal error detail.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PagedEnvelope is the response shape for paginated list endpoints.
type PagedEnvelope struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// writeSuccessMessage writes a success envelope with a message and data.
func writeSuccessMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// writePaged writes a paginated list envelope.
// data should already be the page's items; an empty page serialises as [].
func writePaged(w http.ResponseWriter, data any, page, limit, total int) {
	// Repositories return nil slices for empty pages; clients get []
	if v := reflect.ValueOf(data); data == nil || (v.Kind() == reflect.Slice && v.IsNil()) {
		data = []any{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	writeJSON(w, http.StatusOK, PagedEnvelope{
		Success: true,
		Data:    data,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, message)
}

// writeInternalError writes a 500 error response with a generic message.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeDomainError maps a domain error to its HTTP status.
// Unknown errors become a generic 500; internal detail never reaches
// the client.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, device.ErrNoEligibleDevices),
		errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrAccessDenied):
		writeForbidden(w, err.Error())
	case errors.Is(err, room.ErrRoomHasDevices),
		errors.Is(err, auth.ErrEmailExists):
		writeConflict(w, err.Error())
	case errors.Is(err, device.ErrInvalidDeviceType),
		errors.Is(err, device.ErrTypeImmutable),
		errors.Is(err, device.ErrInvalidDevice),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrPayloadMismatch),
		errors.Is(err, device.ErrInvalidPermission),
		errors.Is(err, device.ErrDeviceExists),
		errors.Is(err, room.ErrInvalidRoom),
		errors.Is(err, room.ErrInvalidCategory),
		errors.Is(err, room.ErrRoomExists):
		writeBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrUserInactive):
		writeUnauthorized(w, "invalid credentials")
	default:
		writeInternalError(w)
	}
}

// decodeJSON decodes a request body into v, writing a 400 on failure.
// Returns false when the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
