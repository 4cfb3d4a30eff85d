package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/dispatch"
	"github.com/fpang/call-sentiment/internal/jobs"
	"github.com/fpang/call-sentiment/internal/pipeline"
	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/sentiment"
	"github.com/fpang/call-sentiment/internal/store"
)

type fakeRunner struct {
	inputs []string
	report *report.Report
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error) {
	f.inputs = append(f.inputs, input)
	if hooks.OnPhase != nil {
		hooks.OnPhase(pipeline.PhaseUpload)
	}
	return f.report, f.err
}

func TestHandle_Analyze(t *testing.T) {
	run := &fakeRunner{report: &report.Report{ID: "r1", Score: 70}}
	w := &worker{runner: run, coldStart: true}

	err := w.handle(context.Background(), dispatch.Event{Type: "analyze", RequestID: "req-1", VideoURL: " https://example.com/call "})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/call"}, run.inputs)
	require.False(t, w.coldStart)
}

func TestHandle_UnknownType(t *testing.T) {
	w := &worker{runner: &fakeRunner{}}
	require.Error(t, w.handle(context.Background(), dispatch.Event{Type: "triage"}))
}

func TestHandle_BadURLIsDropped(t *testing.T) {
	run := &fakeRunner{}
	w := &worker{runner: run}
	require.NoError(t, w.handle(context.Background(), dispatch.Event{Type: "analyze", VideoURL: "/tmp/a.mp3"}))
	require.Empty(t, run.inputs)
}

func TestHandle_ErrorRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"job failed", &assemblyai.JobFailedError{JobID: "j"}, false},
		{"no sentences", &sentiment.AggregationError{Reason: "no sentiment records"}, false},
		{"bad request", &assemblyai.SubmissionError{StatusCode: 400}, false},
		{"rate limited", &assemblyai.SubmissionError{StatusCode: 429}, true},
		{"timeout", &assemblyai.PollTimeoutError{JobID: "j"}, true},
		{"upload", &assemblyai.UploadError{StatusCode: 503}, true},
		{"other", errors.New("yt-dlp exited 1"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &worker{runner: &fakeRunner{err: tt.err}}
			err := w.handle(context.Background(), dispatch.Event{Type: "analyze", VideoURL: "https://example.com/call"})
			if tt.wantRetry {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// phaseRecorder captures every record written to the job store.
type phaseRecorder struct {
	*store.MemoryStore
	phases []string
}

func (p *phaseRecorder) PutJob(ctx context.Context, j *store.JobRecord) error {
	p.phases = append(p.phases, j.Status+"/"+j.Phase)
	return p.MemoryStore.PutJob(ctx, j)
}

func TestHandle_UpdatesJobRecord(t *testing.T) {
	records := &phaseRecorder{MemoryStore: store.NewMemoryStore()}
	run := &fakeRunner{report: &report.Report{ID: "r1", Score: 70}}
	w := &worker{runner: run, jobs: records}

	err := w.handle(context.Background(), dispatch.Event{Type: dispatch.TypeAnalyze, RequestID: "analysis-1", VideoURL: "https://example.com/call"})
	require.NoError(t, err)
	require.Equal(t, []string{"running/", "running/" + string(pipeline.PhaseUpload), "complete/"}, records.phases)

	rec, err := records.GetJob(context.Background(), "analysis-1")
	require.NoError(t, err)
	require.Equal(t, jobs.StatusComplete, rec.Status)
	require.NotNil(t, rec.Report)
	require.Equal(t, "r1", rec.Report.ID)
}

func TestHandle_RecordsFailure(t *testing.T) {
	records := store.NewMemoryStore()
	w := &worker{runner: &fakeRunner{err: &assemblyai.JobFailedError{JobID: "j", Message: "Audio duration is too short."}}, jobs: records}

	err := w.handle(context.Background(), dispatch.Event{Type: dispatch.TypeAnalyze, RequestID: "analysis-2", VideoURL: "https://example.com/call"})
	require.NoError(t, err)

	rec, err := records.GetJob(context.Background(), "analysis-2")
	require.NoError(t, err)
	require.Equal(t, jobs.StatusError, rec.Status)
	require.Contains(t, rec.Error, "Audio duration is too short.")
}

func TestHandle_NoRequestIDSkipsJobRecord(t *testing.T) {
	records := store.NewMemoryStore()
	w := &worker{runner: &fakeRunner{report: &report.Report{ID: "r1"}}, jobs: records}

	require.NoError(t, w.handle(context.Background(), dispatch.Event{VideoURL: "https://example.com/call"}))
	rec, err := records.GetJob(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, rec)
}
