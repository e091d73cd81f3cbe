package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/reelsync/internal/config"
	"github.com/maauso/reelsync/internal/job"
	"github.com/maauso/reelsync/internal/script"
	"github.com/maauso/reelsync/internal/storage"
	"github.com/maauso/reelsync/internal/subtitle"
	"github.com/maauso/reelsync/internal/transcript"
)

// maxRequestBytes bounds request bodies; inline clips are base64 audio.
const maxRequestBytes = 256 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.SyncService
	validator          *validator.Validate
	logger             *slog.Logger
	profile            config.Profile
	clipRoot           string
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateSync only creates the run and returns immediately
// without starting it.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithProfile sets the timing profile requests start from.
func WithProfile(p config.Profile) HandlerOption {
	return func(h *Handlers) {
		h.profile = p
	}
}

// WithClipRoot allows clip paths inside root. Relative paths are resolved
// against it. Without a root, requests cannot name clip paths.
func WithClipRoot(root string) HandlerOption {
	return func(h *Handlers) {
		if root == "" {
			h.clipRoot = ""
			return
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		h.clipRoot = filepath.Clean(root)
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.SyncService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		profile:            config.DefaultProfile(),
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateSync handles POST /syncs requests.
func (h *Handlers) CreateSync(w http.ResponseWriter, r *http.Request) {
	var req CreateSyncRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input, err := h.syncInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}
	if lines := len(input.Script.Lines()); lines != len(input.Clips) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("script has %d lines but %d clips were given", lines, len(input.Clips)),
			"COUNT_MISMATCH")
		return
	}

	created, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create run",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create run", "SYNC_CREATION_FAILED")
		return
	}

	// Run in the background with a detached context so the run outlives the request.
	if h.enableAsyncProcess {
		go func(ctx context.Context, j *job.Job, in job.SyncInput) {
			if err := h.service.Run(ctx, j, in); err != nil {
				h.logger.Error("background run failed",
					slog.String("job_id", j.ID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), created, input)
	}

	h.logger.Info("sync run created",
		slog.String("job_id", created.ID),
		slog.Int("lines", created.Lines),
	)

	writeJSON(w, http.StatusAccepted, CreateSyncResponse{
		ID:     created.ID,
		Status: string(job.StatusQueued),
	})
}

// GetSync handles GET /syncs/{id} requests.
func (h *Handlers) GetSync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "sync ID is required", "MISSING_SYNC_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, toSyncResponse(found))
}

// ListSyncs handles GET /syncs requests.
func (h *Handlers) ListSyncs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list runs", "SYNC_LIST_FAILED")
		return
	}

	resp := ListSyncsResponse{Syncs: make([]SyncResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Syncs = append(resp.Syncs, toSyncResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArtifact handles GET /syncs/{id}/artifacts/{name} requests.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, name := r.PathValue("id"), r.PathValue("name")
	if id == "" || name == "" {
		writeError(w, http.StatusBadRequest, "sync ID and artifact name are required", "MISSING_ARTIFACT")
		return
	}

	rc, err := h.service.OpenArtifact(r.Context(), id, name)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", subtitle.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("failed to stream artifact",
			slog.String("job_id", id),
			slog.String("artifact", name),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteSync handles DELETE /syncs/{id} requests.
func (h *Handlers) DeleteSync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "sync ID is required", "MISSING_SYNC_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), id); err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	h.logger.Info("sync run deleted", slog.String("job_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// errClipSource is returned when a clip does not name exactly one source.
var errClipSource = errors.New("each clip needs exactly one of audio_base64, path or duration")

// Clip path errors.
var (
	errClipPathsDisabled = errors.New("clip paths are not accepted by this server")
	errClipPathOutside   = errors.New("clip path is outside the clip root")
)

// resolveClipPath confines p to root, following symlinks of existing files.
func resolveClipPath(root, p string) (string, error) {
	if root == "" {
		return "", errClipPathsDisabled
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("%w: %s", errClipPathOutside, p)
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p, nil
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil || !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %s", errClipPathOutside, p)
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func clipSources(c ClipRequest) int {
	n := 0
	if c.AudioBase64 != "" {
		n++
	}
	if c.Path != "" {
		n++
	}
	if c.Duration != nil {
		n++
	}
	return n
}

// syncInput converts a validated request into the service input.
func (h *Handlers) syncInput(req CreateSyncRequest) (job.SyncInput, error) {
	doc := &script.Document{Title: req.Script.Title}
	for _, c := range req.Script.Characters {
		doc.Characters = append(doc.Characters, script.Character{Name: c.Name, Lines: c.Lines})
	}

	clips := make([]job.ClipSource, len(req.Clips))
	for i, c := range req.Clips {
		if n := clipSources(c); n != 1 {
			return job.SyncInput{}, fmt.Errorf("%w: clip %d has %d sources", errClipSource, i+1, n)
		}
		switch {
		case c.AudioBase64 != "":
			data, err := base64.StdEncoding.DecodeString(c.AudioBase64)
			if err != nil {
				return job.SyncInput{}, fmt.Errorf("clip %d: invalid audio_base64: %w", i+1, err)
			}
			clips[i].Audio = data
		case c.Path != "":
			path, err := resolveClipPath(h.clipRoot, c.Path)
			if err != nil {
				return job.SyncInput{}, fmt.Errorf("clip %d: %w", i+1, err)
			}
			clips[i].Path = path
		}
		if c.Duration != nil {
			clips[i].Duration = *c.Duration
		}
	}

	p := h.profile
	cfg := p.Timing
	if req.Speed != nil {
		cfg.Speed = *req.Speed
	}
	if req.Lead != nil {
		cfg.Lead.Enabled = *req.Lead
	}
	window := p.WindowSize
	if req.WindowSize != nil {
		window = *req.WindowSize
	}

	input := job.SyncInput{
		Script:     doc,
		Clips:      clips,
		Timing:     cfg,
		WindowSize: window,
		Style:      p.Style,
		PushToS3:   req.PushToS3,
	}
	if len(req.Transcript) > 0 {
		input.Transcript = transcript.Parse(req.Transcript)
		if !input.Transcript.Present() {
			h.logger.Warn("transcript ignored",
				slog.String("shape", input.Transcript.Shape.String()),
				slog.String("reason", input.Transcript.Reason),
			)
		}
	}
	return input, nil
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "sync not found", "SYNC_NOT_FOUND")
	case errors.Is(err, job.ErrRunNotCompleted):
		writeError(w, http.StatusConflict, err.Error(), "SYNC_NOT_COMPLETED")
	case errors.Is(err, job.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error(), "SYNC_IN_PROGRESS")
	case errors.Is(err, storage.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, "artifact not found", "ARTIFACT_NOT_FOUND")
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_ARTIFACT_NAME")
	default:
		h.logger.Error("sync request failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error", "SYNC_FETCH_FAILED")
	}
}

func toSyncResponse(j *job.Job) SyncResponse {
	resp := SyncResponse{
		ID:     j.ID,
		Status: string(j.Status),
		Step:   string(j.Step),
		Title:  j.Title,
		Lines:  j.Lines,
		Speed:  j.Speed,
		Coverage: CoverageResponse{
			Aligned: j.Aligned,
			Total:   j.Total,
			Percent: j.CoveragePercent(),
		},
		Error:     j.Error,
		Artifacts: make([]ArtifactResponse, 0, len(j.Artifacts)),
		CreatedAt: j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	for _, a := range j.Artifacts {
		resp.Artifacts = append(resp.Artifacts, ArtifactResponse{
			Name: a.Name,
			Href: "/syncs/" + j.ID + "/artifacts/" + a.Name,
			URL:  a.URL,
			Size: a.Size,
		})
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
