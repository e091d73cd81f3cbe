// Package job provides the Job aggregate for synchronization runs, the
// repositories that persist it, and the SyncService use case that drives a
// run from script and clips to published caption artifacts.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/reelsync/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the run was accepted and has not started.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the run is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every artifact was published.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a fatal error; no artifacts are published.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled before completion.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Step names a stage of a synchronization run.
type Step string

const (
	StepStage   Step = "stage"
	StepProbe   Step = "probe_align"
	StepBuild   Step = "build"
	StepRender  Step = "render"
	StepPublish Step = "publish"
)

// Artifact is a published output of a run.
type Artifact struct {
	// Name is the artifact file name, e.g. dialogue.ass.
	Name string `json:"name"`
	// Path is the local path of the artifact.
	Path string `json:"path"`
	// URL is the S3 object URL when the run was pushed to S3.
	URL string `json:"url,omitempty"`
	// Size is the artifact size in bytes.
	Size int `json:"size"`
}

// Job represents one synchronization run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Status is the current run state.
	Status Status
	// Step is the stage the run is in, or the stage it failed in.
	Step Step
	// Title is the script title, if any.
	Title string
	// Lines is the number of script lines.
	Lines int
	// Speed is the playback speed factor applied to clip durations.
	Speed float64
	// Aligned is the number of sentences timed from accepted alignment.
	Aligned int
	// Total is the number of alignment attempts.
	Total int
	// PushToS3 indicates whether artifacts are uploaded to S3.
	PushToS3 bool
	// Artifacts lists the published outputs.
	Artifacts []Artifact
	// Error contains the error message if the run failed.
	Error string
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial QUEUED status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial QUEUED status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusQueued,
		Artifacts: make([]Artifact, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// Artifacts recorded so far are dropped.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.Artifacts = make([]Artifact, 0)
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStep records the stage the run entered.
func (j *Job) SetStep(step Step) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Step = step
	j.UpdatedAt = time.Now()
}

// SetCoverage records alignment coverage.
func (j *Job) SetCoverage(aligned, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Aligned = aligned
	j.Total = total
	j.UpdatedAt = time.Now()
}

// CoveragePercent returns the share of sentences timed from alignment.
func (j *Job) CoveragePercent() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.Total == 0 {
		return 0
	}
	return 100 * float64(j.Aligned) / float64(j.Total)
}

// SetArtifacts replaces the published artifact list.
func (j *Job) SetArtifacts(artifacts []Artifact) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Artifacts = make([]Artifact, len(artifacts))
	copy(j.Artifacts, artifacts)
	j.UpdatedAt = time.Now()
}

// Artifact returns the published artifact with the given name.
func (j *Job) Artifact(name string) (Artifact, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, a := range j.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	artifacts := make([]Artifact, len(j.Artifacts))
	copy(artifacts, j.Artifacts)

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Step:        j.Step,
		Title:       j.Title,
		Lines:       j.Lines,
		Speed:       j.Speed,
		Aligned:     j.Aligned,
		Total:       j.Total,
		PushToS3:    j.PushToS3,
		Artifacts:   artifacts,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
