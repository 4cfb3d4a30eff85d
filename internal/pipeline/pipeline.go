// Package pipeline composes the analysis of one call:
//
//	cache lookup -> download -> upload -> submit -> poll -> aggregate
//
// Each stage consumes only the previous stage's output and runs to
// completion before the next starts. Any stage error aborts the run and no
// report is produced. The decorative collaborators (page title, cache
// writes, highlights, events) are best-effort: their failures are logged
// and the run continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/events"
	"github.com/fpang/call-sentiment/internal/media"
	"github.com/fpang/call-sentiment/internal/metrics"
	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/sentiment"
	"github.com/fpang/call-sentiment/internal/store"
)

// Phase names the stage a run is in. Surfaces show it as progress.
type Phase string

const (
	PhaseCache      Phase = "checking cache"
	PhaseDownload   Phase = "downloading audio"
	PhaseUpload     Phase = "uploading audio"
	PhaseSubmit     Phase = "submitting job"
	PhasePoll       Phase = "waiting for transcript"
	PhaseHighlights Phase = "extracting highlights"
	PhaseAggregate  Phase = "aggregating"
	PhaseDone       Phase = "done"
)

// Downloader produces a local audio file for a video link.
type Downloader interface {
	Download(ctx context.Context, videoURL, workDir string) (*media.Asset, func(), error)
}

// Transcriber is the remote speech-to-text service. *assemblyai.Client
// implements it.
type Transcriber interface {
	Upload(ctx context.Context, path string) (assemblyai.RemoteReference, error)
	Submit(ctx context.Context, ref assemblyai.RemoteReference, opts assemblyai.Options) (string, error)
	Poll(ctx context.Context, jobID string, opts assemblyai.PollOptions) (*assemblyai.Transcript, error)
}

// Highlighter summarizes a transcript into short statements.
type Highlighter interface {
	Highlights(ctx context.Context, title, transcript string) ([]string, error)
}

// Publisher announces finished analyses.
type Publisher interface {
	AnalysisCompleted(ctx context.Context, e events.AnalysisCompleted) error
}

// TitleFunc looks up a display title for a video link.
type TitleFunc func(ctx context.Context, videoURL string) (string, error)

// Options tune a Pipeline.
type Options struct {
	WorkDir        string
	PollInterval   time.Duration
	PollTimeout    time.Duration
	ScoreReference float64
	CrossCheck     bool

	// Extra transcript job options passed through to the API.
	Extra map[string]any
}

// Deps are the collaborators of a Pipeline. Downloader and Transcriber
// are required; the rest may be nil.
type Deps struct {
	Downloader  Downloader
	Transcriber Transcriber
	Store       store.TranscriptStore
	Title       TitleFunc
	Highlighter Highlighter
	Publisher   Publisher
}

// Pipeline runs analyses. It holds no per-run state and is safe for
// concurrent use if its collaborators are.
type Pipeline struct {
	deps Deps
	opts Options
}

// DefaultOptions returns Options with the score shown against
// sentiment.ScoreReference.
func DefaultOptions() Options {
	return Options{ScoreReference: sentiment.ScoreReference}
}

// New creates a Pipeline. opts.ScoreReference is used as given, including
// zero.
func New(deps Deps, opts Options) *Pipeline {
	return &Pipeline{deps: deps, opts: opts}
}

// Hooks observe a single run. Either func may be nil.
type Hooks struct {
	OnPhase  func(Phase)
	OnStatus func(assemblyai.Status)
}

func (h Hooks) phase(p Phase) {
	log.Debug().Str("phase", string(p)).Msg("Pipeline phase")
	if h.OnPhase != nil {
		h.OnPhase(p)
	}
}

// StageError tells which stage a run failed in. The cause keeps its type
// so callers can still match *assemblyai.UploadError and friends.
type StageError struct {
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// transcript is the stage output shared by the cache and remote paths.
type transcript struct {
	jobID         string
	title         string
	text          string
	audioDuration float64
	records       []sentiment.Record
	cached        bool
}

// Run analyzes input, which is a video link or a path to a local audio file.
func (p *Pipeline) Run(ctx context.Context, input string, hooks Hooks) (*report.Report, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("no video URL or audio file given")
	}
	if p.deps.Transcriber == nil {
		return nil, errors.New("pipeline has no transcriber")
	}

	start := time.Now()
	local := media.IsLocalFile(input)

	log.Info().Str("input", input).Bool("local", local).Msg("Starting analysis")

	var t *transcript
	if !local {
		t = p.lookupCache(ctx, input, hooks)
	}
	if t == nil {
		var err error
		t, err = p.transcribe(ctx, input, local, hooks)
		if err != nil {
			log.Error().Err(err).Str("input", input).Msg("Analysis failed")
			return nil, err
		}
		if !local {
			p.saveCache(ctx, input, t)
		}
	}

	var highlights []string
	if p.deps.Highlighter != nil && t.text != "" {
		hooks.phase(PhaseHighlights)
		h, err := p.deps.Highlighter.Highlights(ctx, t.title, t.text)
		if err != nil {
			log.Warn().Err(err).Msg("Highlights unavailable")
		} else {
			highlights = h
		}
	}

	hooks.phase(PhaseAggregate)
	r, err := report.Build(report.Input{
		VideoURL:      input,
		Title:         t.title,
		JobID:         t.jobID,
		Cached:        t.cached,
		Transcript:    t.text,
		AudioDuration: t.audioDuration,
		Records:       t.records,
		Reference:     p.opts.ScoreReference,
		CrossCheck:    p.opts.CrossCheck,
		Highlights:    highlights,
	})
	if err != nil {
		return nil, &StageError{Phase: PhaseAggregate, Err: err}
	}

	p.publish(ctx, r)
	hooks.phase(PhaseDone)

	elapsed := time.Since(start)
	log.Info().
		Str("reportId", r.ID).
		Str("jobId", r.JobID).
		Bool("cached", r.Cached).
		Int("sentences", r.SentenceCount).
		Float64("score", r.Score).
		Dur("duration", elapsed).
		Msg("Analysis complete")

	metrics.New().
		Dimension("Stage", "run").
		Dimension("Cached", fmt.Sprintf("%t", r.Cached)).
		Duration("RunMs", elapsed).
		Metric("Sentences", float64(r.SentenceCount), metrics.UnitCount).
		Metric("Score", r.Score, metrics.UnitNone).
		Property("reportId", r.ID).
		Flush()

	return r, nil
}

// transcribe runs the remote path: download, upload, submit, poll.
func (p *Pipeline) transcribe(ctx context.Context, input string, local bool, hooks Hooks) (*transcript, error) {
	var title string
	if !local && p.deps.Title != nil {
		if got, err := p.deps.Title(ctx, input); err != nil {
			log.Warn().Err(err).Str("url", input).Msg("Page title unavailable, using URL")
		} else {
			title = got
		}
	}

	hooks.phase(PhaseDownload)
	var asset *media.Asset
	cleanup := func() {}
	if local {
		a, err := media.LocalAsset(input)
		if err != nil {
			return nil, &StageError{Phase: PhaseDownload, Err: err}
		}
		asset = a
	} else {
		if p.deps.Downloader == nil {
			return nil, &StageError{Phase: PhaseDownload, Err: errors.New("no downloader configured")}
		}
		a, c, err := p.deps.Downloader.Download(ctx, input, p.opts.WorkDir)
		if err != nil {
			return nil, &StageError{Phase: PhaseDownload, Err: err}
		}
		asset, cleanup = a, c
	}
	defer cleanup()

	hooks.phase(PhaseUpload)
	ref, err := p.deps.Transcriber.Upload(ctx, asset.Path)
	// The local copy is no longer needed once the upload has finished.
	cleanup()
	if err != nil {
		return nil, &StageError{Phase: PhaseUpload, Err: err}
	}

	hooks.phase(PhaseSubmit)
	jobID, err := p.deps.Transcriber.Submit(ctx, ref, assemblyai.Options{
		SentimentAnalysis: true,
		Extra:             p.opts.Extra,
	})
	if err != nil {
		return nil, &StageError{Phase: PhaseSubmit, Err: err}
	}

	hooks.phase(PhasePoll)
	tr, err := p.deps.Transcriber.Poll(ctx, jobID, assemblyai.PollOptions{
		Interval:         p.opts.PollInterval,
		Timeout:          p.opts.PollTimeout,
		RequireSentiment: true,
		OnStatus:         hooks.OnStatus,
	})
	if err != nil {
		return nil, &StageError{Phase: PhasePoll, Err: err}
	}

	return &transcript{
		jobID:         jobID,
		title:         title,
		text:          tr.Text,
		audioDuration: tr.AudioDuration,
		records:       tr.SentimentAnalysisResults,
	}, nil
}

func (p *Pipeline) lookupCache(ctx context.Context, videoURL string, hooks Hooks) *transcript {
	if p.deps.Store == nil {
		return nil
	}
	hooks.phase(PhaseCache)
	cached, err := p.deps.Store.GetTranscript(ctx, videoURL)
	if err != nil {
		log.Warn().Err(err).Str("url", videoURL).Msg("Transcript cache read failed, transcribing")
		return nil
	}
	if cached == nil {
		return nil
	}
	if err := sentiment.ValidateAll(cached.Records); err != nil {
		log.Warn().Err(err).Str("url", videoURL).Msg("Cached transcript is invalid, transcribing")
		return nil
	}
	log.Info().Str("url", videoURL).Str("jobId", cached.JobID).Msg("Using cached transcript")
	return &transcript{
		jobID:         cached.JobID,
		title:         cached.Title,
		text:          cached.Text,
		audioDuration: cached.AudioDuration,
		records:       cached.Records,
		cached:        true,
	}
}

func (p *Pipeline) saveCache(ctx context.Context, videoURL string, t *transcript) {
	if p.deps.Store == nil {
		return
	}
	err := p.deps.Store.PutTranscript(ctx, &store.CachedTranscript{
		VideoURL:      videoURL,
		JobID:         t.jobID,
		Title:         t.title,
		Text:          t.text,
		AudioDuration: t.audioDuration,
		Records:       t.records,
	})
	if err != nil {
		log.Warn().Err(err).Str("url", videoURL).Msg("Transcript cache write failed")
	}
}

func (p *Pipeline) publish(ctx context.Context, r *report.Report) {
	if p.deps.Publisher == nil {
		return
	}
	err := p.deps.Publisher.AnalysisCompleted(ctx, events.AnalysisCompleted{
		ReportID:      r.ID,
		VideoURL:      r.VideoURL,
		Title:         r.Title,
		JobID:         r.JobID,
		Cached:        r.Cached,
		Score:         r.Score,
		Delta:         r.Delta,
		SentenceCount: r.SentenceCount,
		Counts:        r.Summary.Counts,
		CompletedAt:   r.GeneratedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("reportId", r.ID).Msg("AnalysisCompleted event not published")
	}
}
