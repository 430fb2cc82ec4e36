package http

import "github.com/Omkar399/project-z/internal/memory"

// AddRequest is the request body for POST /add.
type AddRequest struct {
	Messages []memory.Message `json:"messages"`
	UserID   string           `json:"user_id"`
	Metadata map[string]any   `json:"metadata"`
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// MemoryRecord is a single normalized memory in search and list
// responses. Score is a pointer so it can be omitted entirely on list
// responses, where no ranking happened.
type MemoryRecord struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	Score    *float64       `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// RootResponse is the response body for GET /.
type RootResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AddResponse is the response body for POST /add. Result carries the
// engine's reply verbatim, whatever its shape.
type AddResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result"`
	Message string `json:"message"`
}

// MemoriesResponse is the response body for POST /search and GET /all.
type MemoriesResponse struct {
	Success  bool           `json:"success"`
	Count    int            `json:"count"`
	Memories []MemoryRecord `json:"memories"`
}

// ClearResponse is the response body for DELETE /clear.
type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
