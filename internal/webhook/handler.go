package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-content-sync/internal/changeset"
	"github.com/goliatone/go-content-sync/internal/logging"
	"github.com/goliatone/go-content-sync/internal/syncer"
	"github.com/goliatone/go-content-sync/pkg/interfaces"
)

const (
	defaultPath         = "/hooks/content"
	defaultMaxBodyBytes = 5 << 20

	eventHeader = "X-GitHub-Event"
)

// Runner runs normalized changesets. *syncer.Orchestrator satisfies it.
type Runner interface {
	Sync(ctx context.Context, cs changeset.Changeset, opts syncer.Options) (*syncer.Result, error)
}

// JobLookup reports deferred changeset status. *syncer.Queue satisfies it.
type JobLookup interface {
	Get(id string) (*syncer.Job, error)
}

// API serves the notification endpoint.
type API struct {
	extractor    *changeset.Extractor
	runner       Runner
	jobs         JobLookup
	logger       interfaces.Logger
	path         string
	maxBodyBytes int64
	detach       bool
}

// Option configures the API.
type Option func(*API)

// WithPath sets the mount path.
func WithPath(path string) Option {
	return func(api *API) {
		if strings.TrimSpace(path) != "" {
			api.path = path
		}
	}
}

// WithMaxBodyBytes bounds the accepted payload size.
func WithMaxBodyBytes(limit int64) Option {
	return func(api *API) {
		if limit > 0 {
			api.maxBodyBytes = limit
		}
	}
}

// WithJobs enables the job status route.
func WithJobs(jobs JobLookup) Option {
	return func(api *API) {
		api.jobs = jobs
	}
}

// WithLogger sets the logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(api *API) {
		if logger != nil {
			api.logger = logger
		}
	}
}

// WithDetachedContext keeps syncs running after the caller disconnects.
func WithDetachedContext(detach bool) Option {
	return func(api *API) {
		api.detach = detach
	}
}

// New builds the notification API.
func New(extractor *changeset.Extractor, runner Runner, opts ...Option) *API {
	api := &API{
		extractor:    extractor,
		runner:       runner,
		logger:       logging.NoOp(),
		path:         defaultPath,
		maxBodyBytes: defaultMaxBodyBytes,
		detach:       true,
	}
	for _, opt := range opts {
		opt(api)
	}
	return api
}

// Register mounts the routes on mux.
func (api *API) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("webhook: mux is required")
	}
	if api == nil || api.runner == nil || api.extractor == nil {
		return fmt.Errorf("webhook: api is not configured")
	}
	root := joinPath(api.path)
	mux.HandleFunc(root, api.handleNotification)
	if api.jobs != nil {
		mux.HandleFunc("GET "+root+"/jobs/{id}", api.handleJob)
	}
	return nil
}

// ServeHTTP handles notifications directly, for hosts that mount a single handler.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.handleNotification(w, r)
}

func (api *API) handleNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload_too_large", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read_failed", Message: err.Error()})
		return
	}

	event := strings.ToLower(strings.TrimSpace(r.Header.Get(eventHeader)))
	var notification changeset.Notification
	switch event {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	case "push":
		notification, err = changeset.ParsePushEvent(payload)
	case "":
		notification, err = changeset.ParseNotification(payload)
	default:
		api.logger.Debug("webhook.event.ignored", "event", event)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "event": event})
		return
	}
	if err != nil {
		api.logger.Warn("webhook.payload.malformed", "event", event, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed_payload", Message: err.Error()})
		return
	}

	cs := api.extractor.Extract(notification)
	ctx := r.Context()
	if api.detach {
		ctx = context.WithoutCancel(ctx)
	}
	result, err := api.runner.Sync(ctx, cs, syncer.Options{})
	if err != nil {
		api.logger.Error("webhook.sync.failed", "changeset_id", cs.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "sync_failed", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, newSummary(result))
}

func (api *API) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := api.jobs.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, syncer.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup_failed", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, jobStatus{
		ID:      job.ID,
		Status:  string(job.Status),
		Entries: job.Changeset.Len(),
		Result:  summaryOrNil(job.Result),
	})
}

func joinPath(path string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
