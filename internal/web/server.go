// Package web serves the browser UI and the analysis API:
//
//	GET  /api/health         health check
//	POST /api/analyze        start an analysis of {"videoUrl": ...}
//	GET  /api/analyze/{id}   poll a started analysis
//
// In synchronous mode (or with ?wait=true) POST runs the analysis inside the
// request and answers with the finished report. With a Dispatcher, POST
// only records the job and hands it to a worker; GET then reads the record
// the worker keeps up to date.
package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assets"
	"github.com/fpang/call-sentiment/internal/jobs"
	"github.com/fpang/call-sentiment/internal/jobutil"
	"github.com/fpang/call-sentiment/internal/pipeline"
	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/store"
)

const (
	analyzePath   = "/api/analyze"
	analyzePrefix = "/api/analyze/"
	maxBodyBytes  = 64 << 10

	// phaseQueued is the phase of a dispatched job the worker has not
	// picked up yet.
	phaseQueued = "queued"
)

// Runner runs one analysis. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error)
}

// Dispatcher starts an analysis somewhere else. *dispatch.WorkerInvoker
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID, videoURL string) error
}

// Options configure a Server.
type Options struct {
	// Sync makes every POST wait for the finished report.
	Sync bool

	// Dispatcher hands analyses to a worker. It takes precedence over Sync.
	Dispatcher Dispatcher

	// Jobs holds dispatched job records. It must be shared with the worker;
	// nil selects an in-process MemoryStore.
	Jobs store.JobStore

	// JobTimeout bounds background analyses. Zero means no limit beyond
	// the pipeline's own poll timeout.
	JobTimeout time.Duration

	// Static serves the browser UI. Nil selects the embedded page.
	Static fs.FS
}

// Server holds the API state.
type Server struct {
	runner Runner
	jobs   *jobs.Registry
	opts   Options

	// base is the parent context of background jobs; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
}

// NewServer creates a Server around runner.
func NewServer(runner Runner, opts Options) *Server {
	if opts.Static == nil {
		opts.Static = assets.WebFS()
	}
	if opts.Dispatcher != nil && opts.Jobs == nil {
		opts.Jobs = store.NewMemoryStore()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		runner: runner,
		jobs:   jobs.NewRegistry(jobs.DefaultRetention),
		opts:   opts,
		base:   base,
		cancel: cancel,
	}
}

// Shutdown cancels all running background analyses.
func (s *Server) Shutdown() { s.cancel() }

// Handler returns the complete HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc(analyzePath, s.handleAnalyzeStart)
	mux.HandleFunc(analyzePrefix, s.handleAnalyzeStatus)
	mux.Handle("/", staticHandler(s.opts.Static))
	return withLogging(withMetrics(withCORS(mux)))
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/analyze
func (s *Server) handleAnalyzeStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		VideoURL string `json:"videoUrl"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	videoURL, err := validateVideoURL(req.VideoURL)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.opts.Dispatcher != nil {
		s.dispatch(w, r, videoURL)
		return
	}

	job := s.jobs.New(videoURL)
	log.Info().Str("job", job.ID()).Str("url", videoURL).Msg("Analysis requested")

	if s.opts.Sync || r.URL.Query().Get("wait") == "true" {
		s.runJob(r.Context(), job)
		v := job.Snapshot()
		status := http.StatusOK
		if v.Status == jobs.StatusError {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, v)
		return
	}

	go func() {
		ctx := s.base
		if s.opts.JobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.JobTimeout)
			defer cancel()
		}
		s.runJob(ctx, job)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"id": job.ID()})
}

// GET /api/analyze/{id}
func (s *Server) handleAnalyzeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := jobs.ParseRoute(r.URL.Path, analyzePrefix, jobs.IDPrefix)
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	if s.opts.Dispatcher != nil {
		s.dispatchedStatus(w, r, id)
		return
	}
	job := s.jobs.Get(id)
	if job == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) runJob(ctx context.Context, job *jobs.Job) {
	v := job.Snapshot()
	r, err := s.runner.Run(ctx, v.VideoURL, pipeline.Hooks{
		OnPhase: func(p pipeline.Phase) { job.SetPhase(string(p)) },
	})
	if err != nil {
		jobutil.SetJobError(job.ID(), err, job.Fail)
		return
	}
	job.Complete(r)
	log.Info().Str("job", job.ID()).Str("reportId", r.ID).Msg("Analysis job complete")
}

// dispatch records a queued job and hands it to the worker.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, videoURL string) {
	rec := &store.JobRecord{
		ID:       jobs.GenerateID(jobs.IDPrefix),
		VideoURL: videoURL,
		Status:   jobs.StatusRunning,
		Phase:    phaseQueued,
	}
	if err := s.opts.Jobs.PutJob(r.Context(), rec); err != nil {
		httpError(w, http.StatusInternalServerError, "could not start the analysis", err.Error())
		return
	}

	if err := s.opts.Dispatcher.Dispatch(r.Context(), rec.ID, videoURL); err != nil {
		rec.Status = jobs.StatusError
		rec.Phase = ""
		rec.Error = "Could not start the analysis"
		if perr := s.opts.Jobs.PutJob(r.Context(), rec); perr != nil {
			log.Warn().Err(perr).Str("job", rec.ID).Msg("Failed to record dispatch failure")
		}
		httpError(w, http.StatusBadGateway, "could not start the analysis", err.Error())
		return
	}

	log.Info().Str("job", rec.ID).Str("url", videoURL).Msg("Analysis dispatched")
	respondJSON(w, http.StatusAccepted, map[string]string{"id": rec.ID})
}

// dispatchedStatus answers a poll from the shared job record.
func (s *Server) dispatchedStatus(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.opts.Jobs.GetJob(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "could not read the job", err.Error())
		return
	}
	if rec == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, jobs.View{
		ID:       rec.ID,
		VideoURL: rec.VideoURL,
		Status:   rec.Status,
		Phase:    rec.Phase,
		Error:    rec.Error,
		Report:   rec.Report,
	})
}

// validateVideoURL accepts absolute http(s) links only. Local paths are a
// terminal-only input.
func validateVideoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errorString("videoUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errorString("videoUrl must be an http or https link")
	}
	return raw, nil
}

type errorString string

func (e errorString) Error() string { return string(e) }

func staticHandler(static fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(static))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Unknown paths fall back to the single page.
		if r.URL.Path != "/" {
			f, err := static.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err != nil {
				r.URL.Path = "/"
			} else {
				f.Close()
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}
