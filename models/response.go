package models

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Report    *RunReport   `json:"report,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	CreatedAt int64        `json:"created_at"`
}

// DetailResponse is the response for POST /api/v1/detail.
type DetailResponse struct {
	Success bool          `json:"success"`
	URL     string        `json:"url"`
	Data    DetailMapping `json:"data"`
	Pairs   int           `json:"pairs"`

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string `json:"cache_status,omitempty"`

	TotalMs int64        `json:"total_ms"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	RunActive bool   `json:"run_active"`
	Version   string `json:"version"`
}

// ErrorResponse is returned by middleware that rejects a request before it
// reaches a handler.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
