// Package store caches completed transcripts so that re-analysing the same
// video skips the download, upload and remote job entirely.
//
// Only the transcript text and its per-sentence sentiment records are
// cached. Summaries and scores are always recomputed from the records.
//
// Backends: MemoryStore (process lifetime), DynamoStore (single-table,
// PK=VIDEO#{sha256(url)}, SK=TRANSCRIPT, TTL attribute expiresAt) and
// S3Store (zstd-compressed JSON under transcripts/).
//
// The same backends also hold JobRecords, the progress of analyses that a
// worker runs on behalf of the API (PK=JOB#{id}, SK=STATUS; or jobs/ in S3).
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/fpang/call-sentiment/internal/sentiment"
)

// TranscriptTTL is how long a cached transcript stays valid.
const TranscriptTTL = 30 * 24 * time.Hour

// CachedTranscript is a completed transcript keyed by the video link it
// was produced from.
type CachedTranscript struct {
	VideoURL      string             `json:"videoUrl" dynamodbav:"videoUrl"`
	JobID         string             `json:"jobId" dynamodbav:"jobId"`
	Title         string             `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Text          string             `json:"text" dynamodbav:"text"`
	AudioDuration float64            `json:"audioDuration,omitempty" dynamodbav:"audioDuration,omitempty"`
	Records       []sentiment.Record `json:"records" dynamodbav:"records"`
	CreatedAt     int64              `json:"createdAt" dynamodbav:"createdAt"`
}

// Expired reports whether the entry is older than TranscriptTTL at now.
func (t *CachedTranscript) Expired(now time.Time) bool {
	return t.CreatedAt > 0 && now.Sub(time.Unix(t.CreatedAt, 0)) > TranscriptTTL
}

// TranscriptStore defines the cache interface. Implementations are safe
// for concurrent use.
//
// GetTranscript returns (nil, nil) when nothing is cached for videoURL.
// PutTranscript performs full-item replacement (upsert semantics).
type TranscriptStore interface {
	GetTranscript(ctx context.Context, videoURL string) (*CachedTranscript, error)
	PutTranscript(ctx context.Context, t *CachedTranscript) error
}

// ErrEmptyURL is returned when a transcript has no video URL to key it by.
var ErrEmptyURL = errors.New("store: empty video URL")

// Key returns the stable cache key for a video link: the hex SHA-256 of
// the trimmed URL.
func Key(videoURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(videoURL)))
	return hex.EncodeToString(sum[:])
}

// prepare validates t and stamps CreatedAt.
func prepare(t *CachedTranscript) error {
	if t == nil || strings.TrimSpace(t.VideoURL) == "" {
		return ErrEmptyURL
	}
	if err := sentiment.ValidateAll(t.Records); err != nil {
		return err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	return nil
}
