package api

import "github.com/talentmanager/talentmanager/server/internal/table"

// messageResponse is the body of GET / and a successful POST /employees.
type messageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Employees int    `json:"employees"`
}

// StreamResponse is the payload pushed over /ws/stream.
type StreamResponse struct {
	Stats       table.Stats `json:"stats"`
	AlertCount  int         `json:"alert_count"`
	GeneratedAt string      `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Detail string `json:"detail"`
}
