package assemblyai

import (
	"fmt"
	"time"
)

// FileError means the local media file could not be opened or read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("open media file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// UploadError means the upload endpoint failed or returned an unusable
// response. StatusCode is 0 when no response was received.
type UploadError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	return formatRemoteError("upload audio", e.StatusCode, e.Message, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError means the transcript job could not be created.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	return formatRemoteError("submit transcript", e.StatusCode, e.Message, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ResponseError means a status read returned a non-success code or a body
// that does not match the expected schema.
type ResponseError struct {
	Endpoint   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ResponseError) Error() string {
	return formatRemoteError("read "+e.Endpoint, e.StatusCode, e.Reason, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// JobFailedError means the remote job reached the error state.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transcript %s failed", e.JobID)
	}
	return fmt.Sprintf("transcript %s failed: %s", e.JobID, e.Message)
}

// PollTimeoutError means the poll deadline passed before a terminal state.
type PollTimeoutError struct {
	JobID      string
	Timeout    time.Duration
	LastStatus Status
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("transcript %s: timed out after %s (last status %q)", e.JobID, e.Timeout, e.LastStatus)
}

func formatRemoteError(op string, code int, msg string, err error) string {
	s := op
	if code != 0 {
		s += fmt.Sprintf(": status %d", code)
	}
	if msg != "" {
		s += ": " + msg
	}
	if err != nil {
		s += ": " + err.Error()
	}
	return s
}
