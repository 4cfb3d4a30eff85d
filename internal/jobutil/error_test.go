package jobutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/sentiment"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", fmt.Errorf("poll: %w", context.Canceled), "Analysis cancelled"},
		{"file", &assemblyai.FileError{Path: "/tmp/a.mp3", Err: errors.New("denied")}, "Could not read the audio file /tmp/a.mp3"},
		{"upload", &assemblyai.UploadError{StatusCode: 401, Message: "Invalid API key"}, "Audio upload failed: Invalid API key (HTTP 401)"},
		{"upload transport", &assemblyai.UploadError{Err: errors.New("connection reset")}, "Audio upload failed: connection reset"},
		{"submit", &assemblyai.SubmissionError{StatusCode: 400}, "Transcription request was rejected: HTTP 400"},
		{"job failed", &assemblyai.JobFailedError{JobID: "j", Message: "Audio too short"}, "Transcription failed: Audio too short"},
		{"job failed bare", &assemblyai.JobFailedError{JobID: "j"}, "Transcription failed"},
		{"timeout", &assemblyai.PollTimeoutError{JobID: "j", Timeout: time.Minute, LastStatus: assemblyai.StatusProcessing}, "Transcription did not finish within 1m0s (last status processing)"},
		{"response", &assemblyai.ResponseError{Endpoint: "/transcript/j", Reason: "response missing status"}, "Unexpected response from the transcription service: response missing status"},
		{"aggregation", &sentiment.AggregationError{Reason: "no sentiment records"}, "The transcript contains no sentences to score"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestDescribe_Wrapped(t *testing.T) {
	err := fmt.Errorf("uploading audio: %w", &assemblyai.UploadError{StatusCode: 413, Message: "too large"})
	require.Equal(t, "Audio upload failed: too large (HTTP 413)", Describe(err))
}

func TestSetJobError(t *testing.T) {
	var got string
	SetJobError("analysis-1", &assemblyai.JobFailedError{JobID: "j", Message: "bad audio"}, func(msg string) { got = msg })
	require.Equal(t, "Transcription failed: bad audio", got)
}
