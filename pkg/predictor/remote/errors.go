package remote

import (
	"fmt"
	"net/http"
)

// APIError is an error response from the model server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("model server %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("model server %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the server did not know the requested resource.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == "NOT_FOUND"
}
