// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/companyintel/companyintel-api/internal/version"
)

// timeFormat is the wire format for timestamps in responses.
const timeFormat = time.RFC3339

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Version
	return out, nil
}

// ProbeOutput is the response for Kubernetes probes.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez reports process liveness.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzHandler reports readiness based on database connectivity.
type ReadyzHandler struct {
	db *sql.DB
}

// NewReadyzHandler creates a readiness probe handler.
func NewReadyzHandler(db *sql.DB) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz reports whether the service can reach its database.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	if err := h.db.PingContext(ctx); err != nil {
		return nil, err
	}
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}
