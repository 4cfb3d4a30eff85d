package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/s3util"
)

const (
	s3Prefix    = "transcripts/"
	s3JobPrefix = "jobs/"
)

// S3Store implements TranscriptStore with one zstd-compressed JSON object
// per video. Use it when transcripts outgrow DynamoDB's item size limit.
type S3Store struct {
	client s3util.ObjectAPI
	bucket string
}

var (
	_ TranscriptStore = (*S3Store)(nil)
	_ JobStore        = (*S3Store)(nil)
)

// NewS3Store creates an S3Store for the given bucket.
func NewS3Store(client s3util.ObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func objectKey(videoURL string) string {
	return s3Prefix + Key(videoURL) + ".json.zst"
}

func (s *S3Store) PutTranscript(ctx context.Context, t *CachedTranscript) error {
	if err := prepare(t); err != nil {
		return err
	}
	n, err := s3util.PutCompressedJSON(ctx, s.client, s.bucket, objectKey(t.VideoURL), t)
	if err != nil {
		return fmt.Errorf("put transcript %s: %w", t.JobID, err)
	}
	log.Debug().Str("videoUrl", t.VideoURL).Str("jobId", t.JobID).Int("bytes", n).Msg("Transcript cached in S3")
	return nil
}

func (s *S3Store) GetTranscript(ctx context.Context, videoURL string) (*CachedTranscript, error) {
	var t CachedTranscript
	found, err := s3util.GetCompressedJSON(ctx, s.client, s.bucket, objectKey(videoURL), &t)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if !found || t.Expired(time.Now()) {
		return nil, nil
	}
	return &t, nil
}

func jobObjectKey(id string) string {
	return s3JobPrefix + id + ".json.zst"
}

func (s *S3Store) PutJob(ctx context.Context, j *JobRecord) error {
	if err := prepareJob(j, time.Now()); err != nil {
		return err
	}
	n, err := s3util.PutCompressedJSON(ctx, s.client, s.bucket, jobObjectKey(j.ID), j)
	if err != nil {
		return fmt.Errorf("put job %s: %w", j.ID, err)
	}
	log.Debug().Str("jobId", j.ID).Str("status", j.Status).Int("bytes", n).Msg("Job persisted in S3")
	return nil
}

func (s *S3Store) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	var j JobRecord
	found, err := s3util.GetCompressedJSON(ctx, s.client, s.bucket, jobObjectKey(id), &j)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if !found || j.Expired(time.Now()) {
		return nil, nil
	}
	return &j, nil
}
