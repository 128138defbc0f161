package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusFetching    RunStatus = "fetching"
	RunStatusCleaning    RunStatus = "cleaning"
	RunStatusClassifying RunStatus = "classifying"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// PipelineRun is one execution of a dataset pipeline, from raw fetch
// through classification.
type PipelineRun struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Countries int       `json:"countries"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
