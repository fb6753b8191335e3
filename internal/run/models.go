package run

import (
	"time"

	"VisionFlow/pkg/plugin"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a plugin run.
type Status string

const (
	StatusQueued Status = "queued"
	StatusDone   Status = "done"
	StatusError  Status = "error"
	// StatusUnknown is only assigned by startup reconciliation, never by
	// normal execution.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// PluginRun is the persisted record of one plugin invocation.
type PluginRun struct {
	ID       uuid.UUID `json:"id"`
	Plugin   string    `json:"plugin"`
	VideoID  string    `json:"video_id"`
	UserID   string    `json:"user_id"`
	Status   Status    `json:"status"`
	Progress float64   `json:"progress"`
	// InScheduler is a one-shot duplicate-delivery guard: set exactly once
	// by the queue worker that wins the run, never reset. A worker that
	// observes it already set aborts without side effects. A worker that
	// crashed after setting it leaves the run stuck until the reconciler
	// demotes it to unknown at the next process start.
	InScheduler bool      `json:"in_scheduler"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PluginRunResult names one produced output slot and the entity it references.
type PluginRunResult struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	OutputSlot string    `json:"output_slot"`
	EntityID   string    `json:"entity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunRequest is a caller's ask to run a plugin.
type RunRequest struct {
	Plugin     string            `json:"plugin"`
	VideoID    string            `json:"video_id"`
	UserID     string            `json:"user_id"`
	Inputs     map[string]string `json:"inputs"`
	Parameters []plugin.RawParam `json:"parameters"`
	Async      bool              `json:"async"`
	DryRun     bool              `json:"dry_run"`
}

// RunResponse is the structured result handed back to the caller. Plugin
// failures surface here as Status false, never as a propagated error.
type RunResponse struct {
	Status  bool              `json:"status"`
	RunID   uuid.UUID         `json:"run_id,omitempty"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// RunPayload is the single opaque unit of work submitted to the task queue
// for an asynchronous run. The embedded PluginRunID is the message identity
// used for reconciliation.
type RunPayload struct {
	Plugin      string                 `json:"plugin"`
	Parameters  map[string]interface{} `json:"parameters"`
	Inputs      map[string]string      `json:"inputs"`
	VideoID     string                 `json:"video_id"`
	UserID      string                 `json:"user_id"`
	PluginRunID uuid.UUID              `json:"plugin_run_id"`
	DryRun      bool                   `json:"dry_run"`
	Kwargs      map[string]interface{} `json:"kwargs,omitempty"`
}
