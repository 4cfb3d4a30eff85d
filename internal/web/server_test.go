package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/jobs"
	"github.com/fpang/call-sentiment/internal/metrics"
	"github.com/fpang/call-sentiment/internal/pipeline"
	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/store"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type runnerFunc func(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error)

func (f runnerFunc) Run(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error) {
	return f(ctx, input, hooks)
}

func okRunner(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error) {
	if hooks.OnPhase != nil {
		hooks.OnPhase(pipeline.PhaseUpload)
	}
	return &report.Report{ID: "report-1", VideoURL: input, Score: 62.5}, nil
}

func newTestServer(t *testing.T, runner Runner, opts Options) *httptest.Server {
	t.Helper()
	if opts.Static == nil {
		opts.Static = fstest.MapFS{"index.html": {Data: []byte("<html>ui</html>")}}
	}
	s := NewServer(runner, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Shutdown()
		ts.Close()
	})
	return ts
}

func postAnalyze(t *testing.T, ts *httptest.Server, query, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/analyze"+query, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJob(t *testing.T, ts *httptest.Server, id string) (int, jobs.View) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/analyze/" + id)
	if err != nil {
		// Called from Eventually conditions, so no FailNow here.
		t.Errorf("get job: %v", err)
		return 0, jobs.View{}
	}
	defer resp.Body.Close()
	var v jobs.View
	json.NewDecoder(resp.Body).Decode(&v)
	return resp.StatusCode, v
}

type fakeDispatcher struct {
	ids  []string
	urls []string
	err  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobID, videoURL string) error {
	f.ids = append(f.ids, jobID)
	f.urls = append(f.urls, videoURL)
	return f.err
}

func failRunner(t *testing.T) Runner {
	return runnerFunc(func(context.Context, string, pipeline.Hooks) (*report.Report, error) {
		t.Errorf("dispatched analyses must not run in the API process")
		return nil, nil
	})
}

func TestAnalyze_DispatchedLifecycle(t *testing.T) {
	shared := store.NewMemoryStore()
	d := &fakeDispatcher{}
	ts := newTestServer(t, failRunner(t), Options{Sync: true, Dispatcher: d, Jobs: shared})

	resp, out := postAnalyze(t, ts, "?wait=true", `{"videoUrl":"https://example.com/call"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := out["id"].(string)
	require.True(t, strings.HasPrefix(id, jobs.IDPrefix))
	require.Equal(t, []string{id}, d.ids)
	require.Equal(t, []string{"https://example.com/call"}, d.urls)

	code, v := getJob(t, ts, id)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, jobs.StatusRunning, v.Status)
	require.Equal(t, "queued", v.Phase)

	// The worker writes the finished record to the shared store.
	require.NoError(t, shared.PutJob(context.Background(), &store.JobRecord{
		ID:       id,
		VideoURL: "https://example.com/call",
		Status:   jobs.StatusComplete,
		Report:   &report.Report{ID: "report-9", Score: 55},
	}))

	code, v = getJob(t, ts, id)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, jobs.StatusComplete, v.Status)
	require.NotNil(t, v.Report)
	require.Equal(t, "report-9", v.Report.ID)

	code, _ = getJob(t, ts, jobs.IDPrefix+"unknown")
	require.Equal(t, http.StatusNotFound, code)
}

func TestAnalyze_DispatchFailure(t *testing.T) {
	shared := store.NewMemoryStore()
	d := &fakeDispatcher{err: errors.New("AccessDeniedException")}
	ts := newTestServer(t, failRunner(t), Options{Dispatcher: d, Jobs: shared})

	resp, out := postAnalyze(t, ts, "", `{"videoUrl":"https://example.com/call"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "could not start the analysis", out["error"])

	require.Len(t, d.ids, 1)
	rec, err := shared.GetJob(context.Background(), d.ids[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, jobs.StatusError, rec.Status)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{})
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnalyze_AsyncLifecycle(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, input string, hooks pipeline.Hooks) (*report.Report, error) {
		hooks.OnPhase(pipeline.PhasePoll)
		<-release
		return &report.Report{ID: "report-1", VideoURL: input}, nil
	})
	ts := newTestServer(t, runner, Options{})

	resp, body := postAnalyze(t, ts, "", `{"videoUrl":"https://www.youtube.com/watch?v=abc"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := body["id"].(string)
	require.True(t, strings.HasPrefix(id, jobs.IDPrefix))

	require.Eventually(t, func() bool {
		_, v := getJob(t, ts, id)
		return v.Phase == string(pipeline.PhasePoll)
	}, 2*time.Second, 10*time.Millisecond)

	_, v := getJob(t, ts, id)
	require.Equal(t, jobs.StatusRunning, v.Status)

	close(release)
	require.Eventually(t, func() bool {
		_, v := getJob(t, ts, id)
		return v.Status == jobs.StatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	code, v := getJob(t, ts, strings.TrimPrefix(id, jobs.IDPrefix))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "report-1", v.Report.ID)
}

func TestAnalyze_AsyncFailure(t *testing.T) {
	runner := runnerFunc(func(context.Context, string, pipeline.Hooks) (*report.Report, error) {
		return nil, &assemblyai.JobFailedError{JobID: "j", Message: "Audio too short"}
	})
	ts := newTestServer(t, runner, Options{})

	_, body := postAnalyze(t, ts, "", `{"videoUrl":"https://example.com/call"}`)
	id := body["id"].(string)

	require.Eventually(t, func() bool {
		_, v := getJob(t, ts, id)
		return v.Status == jobs.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	_, v := getJob(t, ts, id)
	require.Equal(t, "Transcription failed: Audio too short", v.Error)
	require.Nil(t, v.Report)
}

func TestAnalyze_Sync(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{Sync: true})

	resp, body := postAnalyze(t, ts, "", `{"videoUrl":"https://example.com/call"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, jobs.StatusComplete, body["status"])
	rep, ok := body["report"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "report-1", rep["id"])
}

func TestAnalyze_WaitQuery(t *testing.T) {
	runner := runnerFunc(func(context.Context, string, pipeline.Hooks) (*report.Report, error) {
		return nil, &assemblyai.PollTimeoutError{JobID: "j", Timeout: time.Minute, LastStatus: assemblyai.StatusQueued}
	})
	ts := newTestServer(t, runner, Options{})

	resp, body := postAnalyze(t, ts, "?wait=true", `{"videoUrl":"https://example.com/call"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, jobs.StatusError, body["status"])
	require.Contains(t, body["error"], "did not finish")
}

func TestAnalyze_BadRequests(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"missing", `{}`},
		{"local path", `{"videoUrl":"/etc/passwd"}`},
		{"other scheme", `{"videoUrl":"ftp://example.com/a.mp3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postAnalyze(t, ts, "", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NotEmpty(t, body["error"])
		})
	}
}

func TestAnalyze_MethodAndRouting(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{})

	resp, err := http.Get(ts.URL + "/api/analyze")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	code, _ := getJob(t, ts, "analysis-unknown")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = getJob(t, ts, "abc/extra")
	require.Equal(t, http.StatusNotFound, code)
}

func TestStatic_FallsBackToIndex(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{})

	resp, err := http.Get(ts.URL + "/some/client/route")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "ui")
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestCORS_Localhost(t *testing.T) {
	ts := newTestServer(t, runnerFunc(okRunner), Options{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNormalizeEndpoint(t *testing.T) {
	require.Equal(t, "/api/health", normalizeEndpoint("/api/health"))
	require.Equal(t, "/api/analyze", normalizeEndpoint("/api/analyze"))
	require.Equal(t, "/api/analyze/*", normalizeEndpoint("/api/analyze/analysis-0123456789abcdef"))
	require.Equal(t, "/api/other", normalizeEndpoint("/api/nope"))
}
