package models

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// URL overrides the configured source page.
	URL string `json:"url,omitempty" binding:"omitempty,url"`

	// EnrichLimit overrides how many leading records are enriched.
	// 0 enriches every record. Nil keeps the configured default.
	EnrichLimit *int `json:"enrich_limit,omitempty" binding:"omitempty,min=0"`

	// Format selects the output file format: "csv" or "xlsx".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=csv xlsx"`

	// WebhookURL receives run.completed / run.failed events.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook payloads with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// DetailRequest is the payload for POST /api/v1/detail.
type DetailRequest struct {
	// URL is the detail page to fetch. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxAge is the maximum acceptable age of a cached result in
	// milliseconds. 0 always fetches fresh.
	MaxAge int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}
