package models

import "sync"

// Run statuses reported by the API.
const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// RunReport summarises one end-to-end pipeline run.
type RunReport struct {
	SourceURL string `json:"source_url"`
	FinalURL  string `json:"final_url"`

	// Title is the rendered page's document title.
	Title string `json:"title,omitempty"`

	// Expansions is the number of "see more" activations performed.
	Expansions int `json:"expansions"`

	// RowsSeen counts every table row read after expansion finished.
	RowsSeen int `json:"rows_seen"`

	RecordsExtracted  int `json:"records_extracted"`
	SkippedMarkerRows int `json:"skipped_marker_rows"`
	SkippedShortRows  int `json:"skipped_short_rows"`

	// EnrichmentCandidates is the size of the prefix handed to enrichment.
	EnrichmentCandidates int `json:"enrichment_candidates"`
	Eligible             int `json:"eligible"`
	Enriched             int `json:"enriched"`

	OutputPath string `json:"output_path"`
	Format     string `json:"format"`

	// TotalSaved is summed over every extracted record, not only the
	// enriched prefix.
	TotalSaved         float64 `json:"total_saved"`
	TotalSavedBillions float64 `json:"total_saved_billions"`

	Timing RunTiming `json:"timing"`
}

// RunTiming provides duration breakdowns for a run.
type RunTiming struct {
	TotalMs  int64 `json:"total_ms"`
	LoadMs   int64 `json:"load_ms"`
	EnrichMs int64 `json:"enrich_ms"`
	WriteMs  int64 `json:"write_ms"`
}

// RunJob tracks an asynchronous pipeline run started through the API.
type RunJob struct {
	mu        sync.Mutex
	ID        string
	Status    string // "processing", "completed", "failed"
	Report    *RunReport
	Error     *ErrorDetail
	CreatedAt int64 // unix timestamp
}

// Finish records the outcome of the run.
func (j *RunJob) Finish(report *RunReport, err *ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Report = report
	j.Error = err
	if err != nil {
		j.Status = RunStatusFailed
	} else {
		j.Status = RunStatusCompleted
	}
}

// Snapshot returns a consistent copy of the job's public state.
func (j *RunJob) Snapshot() RunStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return RunStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Report:    j.Report,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
	}
}
