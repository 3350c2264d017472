package model

import "time"

// RunStatus represents the current state of an enrichment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusConverged RunStatus = "converged"
	RunStatusExhausted RunStatus = "exhausted"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one enrichment invocation for the run history.
type Run struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final tallies of a run.
type RunResult struct {
	Prospects    int     `json:"prospects"`
	Accepted     int     `json:"accepted"`
	Skipped      int     `json:"skipped"`
	Passes       int     `json:"passes"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// PassStats records one pass over the pending set.
type PassStats struct {
	RunID         string    `json:"run_id"`
	Pass          int       `json:"pass"`
	ChunkSize     int       `json:"chunk_size"`
	PendingBefore int       `json:"pending_before"`
	PendingAfter  int       `json:"pending_after"`
	StartedAt     time.Time `json:"started_at"`
}
