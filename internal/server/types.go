// Package server provides the HTTP API for submitting synchronization runs,
// polling their status and downloading caption artifacts. It includes
// handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"encoding/json"
	"time"
)

// CreateSyncRequest is the HTTP request body for starting a run.
type CreateSyncRequest struct {
	// Script is the dialogue script.
	Script ScriptRequest `json:"script"`
	// Clips has one entry per script line, in speaker-major order.
	Clips []ClipRequest `json:"clips" validate:"required,min=1,dive"`
	// Transcript is an optional sentence-level transcript in any supported shape.
	Transcript json.RawMessage `json:"transcript,omitempty"`
	// Speed overrides the playback speed factor.
	Speed *float64 `json:"speed,omitempty" validate:"omitempty,gt=0"`
	// WindowSize overrides the highlight window in words.
	WindowSize *int `json:"window_size,omitempty" validate:"omitempty,min=1,max=32"`
	// Lead enables or disables the highlight lead.
	Lead *bool `json:"lead,omitempty"`
	// PushToS3 indicates whether to upload the artifacts to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// ScriptRequest is a dialogue script.
type ScriptRequest struct {
	Title      string             `json:"title,omitempty"`
	Characters []CharacterRequest `json:"characters" validate:"required,min=1,dive"`
}

// CharacterRequest is one speaker and their lines.
type CharacterRequest struct {
	Name  string   `json:"name" validate:"required"`
	Lines []string `json:"lines"`
}

// ClipRequest identifies the audio of one line. Exactly one source is used:
// inline audio, a server-side path, or a known duration.
type ClipRequest struct {
	AudioBase64 string   `json:"audio_base64,omitempty" validate:"omitempty,base64"`
	Path        string   `json:"path,omitempty"`
	Duration    *float64 `json:"duration,omitempty" validate:"omitempty,gt=0"`
}

// CreateSyncResponse is the HTTP response after creating a run.
type CreateSyncResponse struct {
	// ID is the unique identifier for the created run.
	ID string `json:"id"`
	// Status is the initial run status.
	Status string `json:"status"`
}

// SyncResponse is the HTTP response for getting run details.
type SyncResponse struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Step        string             `json:"step,omitempty"`
	Title       string             `json:"title,omitempty"`
	Lines       int                `json:"lines"`
	Speed       float64            `json:"speed"`
	Coverage    CoverageResponse   `json:"coverage"`
	Error       string             `json:"error,omitempty"`
	Artifacts   []ArtifactResponse `json:"artifacts"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// CoverageResponse reports how many sentences were timed from alignment.
type CoverageResponse struct {
	Aligned int     `json:"aligned"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// ArtifactResponse describes one published artifact.
type ArtifactResponse struct {
	Name string `json:"name"`
	// Href is the download path on this server.
	Href string `json:"href"`
	// URL is the S3 URL when the run was pushed to S3.
	URL  string `json:"url,omitempty"`
	Size int    `json:"size"`
}

// ListSyncsResponse is the HTTP response for listing runs.
type ListSyncsResponse struct {
	Syncs []SyncResponse `json:"syncs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
