package assemblyai

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

	"github.com/fpang/call-sentiment/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	}
	return NewClient("test-key", append(base, opts...)...)
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/transcript" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("authorization") != "test-key" {
			t.Errorf("missing authorization header")
		}
		if !strings.HasPrefix(r.Header.Get("content-type"), "application/json") {
			t.Errorf("unexpected content-type: %s", r.Header.Get("content-type"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["audio_url"] != "https://cdn/upload/abc" {
			t.Errorf("unexpected audio_url: %v", body["audio_url"])
		}
		if body["sentiment_analysis"] != "True" {
			t.Errorf("expected sentiment_analysis=True, got %v", body["sentiment_analysis"])
		}
		if body["speaker_labels"] != true {
			t.Errorf("expected extra option speaker_labels to pass through, got %v", body["speaker_labels"])
		}

		json.NewEncoder(w).Encode(map[string]string{"id": "job-001", "status": "queued"})
	}))
	defer server.Close()

	client := newTestClient(server)
	id, err := client.Submit(context.Background(), "https://cdn/upload/abc", Options{
		SentimentAnalysis: true,
		Extra:             map[string]any{"speaker_labels": true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "job-001" {
		t.Errorf("expected job-001, got %s", id)
	}
}

func TestOptions_RequestBody(t *testing.T) {
	o := Options{
		SentimentAnalysis: false,
		Extra: map[string]any{
			"audio_url":     "https://evil/override",
			"language_code": "en_us",
		},
	}
	body := o.requestBody("https://cdn/real")

	if body["audio_url"] != "https://cdn/real" {
		t.Errorf("extra options must not override audio_url, got %v", body["audio_url"])
	}
	if body["sentiment_analysis"] != "False" {
		t.Errorf("expected sentiment_analysis=False, got %v", body["sentiment_analysis"])
	}
	if body["language_code"] != "en_us" {
		t.Errorf("expected language_code passthrough, got %v", body["language_code"])
	}
	if o.Extra["audio_url"] != "https://evil/override" {
		t.Error("requestBody must not mutate the caller's Extra map")
	}
}

func TestSubmit_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Download error, unable to download https://cdn/upload/abc"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Submit(context.Background(), "https://cdn/upload/abc", Options{SentimentAnalysis: true})

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T: %v", err, err)
	}
	if subErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", subErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "Download error") {
		t.Errorf("expected API message in error, got: %v", err)
	}
}

func TestSubmit_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Submit(context.Background(), "https://cdn/upload/abc", Options{})

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "missing id") {
		t.Errorf("expected missing id error, got: %v", err)
	}
}

func TestSubmit_EmptyReference(t *testing.T) {
	client := NewClient("k")
	_, err := client.Submit(context.Background(), "", Options{})

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T: %v", err, err)
	}
}
