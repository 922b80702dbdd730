// Package health holds the client-side shapes of status API responses.
package health

import (
	"time"

	"github.com/marmos91/dagpilot/pkg/pilot"
)

// Response is the /health and /health/ready envelope.
type Response struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Healthy reports whether the server answered "healthy".
func (r *Response) Healthy() bool {
	return r.Status == "healthy"
}

// StatusResponse is the /status envelope.
type StatusResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Data      pilot.Status `json:"data"`
	Error     string       `json:"error,omitempty"`
}
