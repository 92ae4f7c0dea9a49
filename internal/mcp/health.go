package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by every search index backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It reports 503 when the index backend cannot be reached.
func NewHealthHandler(index HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Index:     "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if err := index.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
