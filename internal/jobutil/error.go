// Package jobutil turns pipeline failures into messages a person can act
// on, and records them against a job.
//
// Describe is shared by the terminal and HTTP surfaces so both report a
// failed upload, a rejected job or a timeout the same way.
package jobutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/assemblyai"
	"github.com/fpang/call-sentiment/internal/sentiment"
)

// ErrorWriter persists a job failure message.
type ErrorWriter func(msg string)

// SetJobError logs the error and hands its user-facing message to write.
func SetJobError(jobID string, err error, write ErrorWriter) {
	msg := Describe(err)
	log.Error().
		Err(err).
		Str("job", jobID).
		Str("message", msg).
		Msg("Job failed")
	write(msg)
}

// Describe returns a short explanation of err for display.
func Describe(err error) string {
	var (
		fileErr    *assemblyai.FileError
		uploadErr  *assemblyai.UploadError
		subErr     *assemblyai.SubmissionError
		respErr    *assemblyai.ResponseError
		failedErr  *assemblyai.JobFailedError
		timeoutErr *assemblyai.PollTimeoutError
		aggErr     *sentiment.AggregationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Analysis cancelled"
	case errors.As(err, &fileErr):
		return fmt.Sprintf("Could not read the audio file %s", fileErr.Path)
	case errors.As(err, &uploadErr):
		return "Audio upload failed: " + remoteDetail(uploadErr.StatusCode, uploadErr.Message, uploadErr.Err)
	case errors.As(err, &subErr):
		return "Transcription request was rejected: " + remoteDetail(subErr.StatusCode, subErr.Message, subErr.Err)
	case errors.As(err, &failedErr):
		if failedErr.Message == "" {
			return "Transcription failed"
		}
		return "Transcription failed: " + failedErr.Message
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("Transcription did not finish within %s (last status %s)", timeoutErr.Timeout, timeoutErr.LastStatus)
	case errors.As(err, &respErr):
		return "Unexpected response from the transcription service: " + remoteDetail(respErr.StatusCode, respErr.Reason, respErr.Err)
	case errors.As(err, &aggErr):
		return "The transcript contains no sentences to score"
	default:
		return err.Error()
	}
}

func remoteDetail(code int, msg string, err error) string {
	switch {
	case msg != "" && code != 0:
		return fmt.Sprintf("%s (HTTP %d)", msg, code)
	case msg != "":
		return msg
	case code != 0:
		return fmt.Sprintf("HTTP %d", code)
	case err != nil:
		return err.Error()
	default:
		return "unknown error"
	}
}
