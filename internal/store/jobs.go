package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fpang/call-sentiment/internal/report"
)

// JobTTL is how long an analysis job record stays readable.
const JobTTL = 24 * time.Hour

// JobRecord is the shared state of an analysis started by one process and
// run by another: the API Lambda writes it, the worker updates it, and
// the browser polls it.
type JobRecord struct {
	ID        string         `json:"id" dynamodbav:"id"`
	VideoURL  string         `json:"videoUrl" dynamodbav:"videoUrl"`
	Status    string         `json:"status" dynamodbav:"status"`
	Phase     string         `json:"phase,omitempty" dynamodbav:"phase,omitempty"`
	Error     string         `json:"error,omitempty" dynamodbav:"error,omitempty"`
	Report    *report.Report `json:"report,omitempty" dynamodbav:"-"`
	UpdatedAt int64          `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Expired reports whether the record is older than JobTTL at now.
func (j *JobRecord) Expired(now time.Time) bool {
	return j.UpdatedAt > 0 && now.Sub(time.Unix(j.UpdatedAt, 0)) > JobTTL
}

// JobStore persists job records. GetJob returns (nil, nil) for an unknown
// or expired ID. PutJob replaces the whole record.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*JobRecord, error)
	PutJob(ctx context.Context, j *JobRecord) error
}

// ErrEmptyJobID is returned when a job record has no ID.
var ErrEmptyJobID = errors.New("store: empty job ID")

// prepareJob validates j and stamps UpdatedAt.
func prepareJob(j *JobRecord, now time.Time) error {
	if j == nil || strings.TrimSpace(j.ID) == "" {
		return ErrEmptyJobID
	}
	j.UpdatedAt = now.Unix()
	return nil
}
