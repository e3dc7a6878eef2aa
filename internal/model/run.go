package model

import "time"

// RunStatus represents the current state of a bid run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusPricing   RunStatus = "pricing"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// RunInput describes the documents a run was started with.
type RunInput struct {
	Name      string                  `json:"name,omitempty"`
	Documents map[DocumentType]string `json:"documents"`
}

// Run is a persisted bid generation request.
type Run struct {
	ID        string      `json:"id"`
	Input     RunInput    `json:"input"`
	Status    RunStatus   `json:"status"`
	Result    *BidPackage `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
