package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/dispatch"
	"github.com/fpang/call-sentiment/internal/jobs"
	"github.com/fpang/call-sentiment/internal/jobutil"
	"github.com/fpang/call-sentiment/internal/pipeline"
	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/sentiment"
	"github.com/fpang/call-sentiment/internal/store"
)

type runner interface {
	Run(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error)
}

type worker struct {
	runner    runner
	jobs      store.JobStore
	coldStart bool
}

func (w *worker) handle(ctx context.Context, event dispatch.Event) error {
	if w.coldStart {
		w.coldStart = false
		log.Info().Str("function", "sentiment-worker").Msg("Cold start, first invocation")
	}
	log.Info().
		Str("type", event.Type).
		Str("requestId", event.RequestID).
		Str("url", event.VideoURL).
		Msg("Worker Lambda invoked")

	switch event.Type {
	case dispatch.TypeAnalyze, "":
		return w.handleAnalyze(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func (w *worker) handleAnalyze(ctx context.Context, event dispatch.Event) error {
	jobStart := time.Now()
	videoURL := strings.TrimSpace(event.VideoURL)
	rec := &store.JobRecord{ID: event.RequestID, VideoURL: videoURL, Status: jobs.StatusRunning}

	if !strings.HasPrefix(videoURL, "http://") && !strings.HasPrefix(videoURL, "https://") {
		// Retrying cannot fix the payload.
		log.Error().Str("requestId", event.RequestID).Str("url", videoURL).Msg("Ignoring event without an http(s) videoUrl")
		rec.Status = jobs.StatusError
		rec.Error = "videoUrl must be an http or https link"
		w.save(ctx, rec)
		return nil
	}
	w.save(ctx, rec)

	r, err := w.runner.Run(ctx, videoURL, pipeline.Hooks{
		OnPhase: func(p pipeline.Phase) {
			log.Debug().Str("requestId", event.RequestID).Str("phase", string(p)).Msg("Worker progress")
			if p == pipeline.PhaseDone {
				return
			}
			rec.Phase = string(p)
			w.save(ctx, rec)
		},
	})
	if err != nil {
		jobutil.SetJobError(event.RequestID, err, func(msg string) {
			rec.Status = jobs.StatusError
			rec.Phase = ""
			rec.Error = msg
			w.save(ctx, rec)
		})
		if permanent(err) {
			return nil
		}
		return err
	}

	rec.Status = jobs.StatusComplete
	rec.Phase = ""
	rec.Report = r
	w.save(ctx, rec)

	log.Info().
		Str("requestId", event.RequestID).
		Str("reportId", r.ID).
		Float64("score", r.Score).
		Float64("delta", r.Delta).
		Bool("cached", r.Cached).
		Dur("duration", time.Since(jobStart)).
		Msg("Worker analysis complete")
	return nil
}

// save writes the job record when the event came from the API. A failed
// write only loses progress display, so it is logged and ignored.
func (w *worker) save(ctx context.Context, rec *store.JobRecord) {
	if w.jobs == nil || rec.ID == "" {
		return
	}
	if err := w.jobs.PutJob(ctx, rec); err != nil {
		log.Warn().Err(err).Str("requestId", rec.ID).Str("status", rec.Status).Msg("Failed to update job record")
	}
}

// permanent reports failures that an automatic Lambda retry would repeat.
func permanent(err error) bool {
	var (
		failedErr *assemblyai.JobFailedError
		subErr    *assemblyai.SubmissionError
		aggErr    *sentiment.AggregationError
	)
	switch {
	case errors.As(err, &failedErr), errors.As(err, &aggErr):
		return true
	case errors.As(err, &subErr):
		return subErr.StatusCode >= 400 && subErr.StatusCode < 500 && subErr.StatusCode != 429
	default:
		return false
	}
}
