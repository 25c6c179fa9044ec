package backend

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConflict means the backend already holds a cart line for the
	// product; callers merge quantities instead of surfacing it.
	ErrConflict = errors.New("cart line already exists")

	// ErrNotImplemented means the cart endpoint does not exist on the
	// backend yet; callers switch the operation to local-only state.
	ErrNotImplemented = errors.New("backend endpoint not implemented")

	ErrAuthRequired = errors.New("authentication required")
	ErrForbidden    = errors.New("not permitted")
	ErrNotFound     = errors.New("record no longer exists")
)

// APIError carries the backend status code and whatever human-readable
// message the response body held, for failures outside the sentinel set.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// errorMessage digs a message out of a JSON error body. The backend is
// inconsistent about the field name, so both spellings are tried.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// statusError maps the status codes shared by every endpoint. Endpoint
// specific codes (409 on cart add, 400 on the cart path) are handled by
// the callers before falling through to this.
func statusError(code int, body []byte) error {
	switch code {
	case 401:
		return ErrAuthRequired
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	default:
		return &APIError{StatusCode: code, Message: errorMessage(body)}
	}
}
