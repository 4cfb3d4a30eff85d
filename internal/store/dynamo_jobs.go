package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/report"
	"github.com/fpang/call-sentiment/internal/s3util"
)

const (
	jobPKPrefix = "JOB#"
	skStatus    = "STATUS"
)

var _ JobStore = (*DynamoStore)(nil)

// dynamoJob is the item layout of a job record. The report is kept as
// zstd-compressed JSON so long transcripts stay under the item size limit.
type dynamoJob struct {
	ID        string `dynamodbav:"id"`
	VideoURL  string `dynamodbav:"videoUrl"`
	Status    string `dynamodbav:"status"`
	Phase     string `dynamodbav:"phase,omitempty"`
	Error     string `dynamodbav:"error,omitempty"`
	ReportZst []byte `dynamodbav:"reportZst,omitempty"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

func (s *DynamoStore) PutJob(ctx context.Context, j *JobRecord) error {
	if err := prepareJob(j, time.Now()); err != nil {
		return err
	}
	item := dynamoJob{
		ID:        j.ID,
		VideoURL:  j.VideoURL,
		Status:    j.Status,
		Phase:     j.Phase,
		Error:     j.Error,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Report != nil {
		raw, err := json.Marshal(j.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if item.ReportZst, err = s3util.Compress(raw); err != nil {
			return err
		}
	}

	ttl := time.Unix(j.UpdatedAt, 0).Add(JobTTL).Unix()
	if err := s.putItem(ctx, jobPKPrefix+j.ID, skStatus, ttl, item); err != nil {
		return fmt.Errorf("put job %s: %w", j.ID, err)
	}

	log.Debug().
		Str("jobId", j.ID).
		Str("status", j.Status).
		Str("phase", j.Phase).
		Int("reportBytes", len(item.ReportZst)).
		Msg("Job persisted")
	return nil
}

func (s *DynamoStore) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	var item dynamoJob
	found, err := s.getItem(ctx, jobPKPrefix+id, skStatus, &item)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	j := &JobRecord{
		ID:        id,
		VideoURL:  item.VideoURL,
		Status:    item.Status,
		Phase:     item.Phase,
		Error:     item.Error,
		UpdatedAt: item.UpdatedAt,
	}
	if !found || j.Expired(time.Now()) {
		log.Debug().Str("jobId", id).Bool("found", false).Msg("GetJob: job not found")
		return nil, nil
	}
	if len(item.ReportZst) > 0 {
		raw, err := s3util.Decompress(bytes.NewReader(item.ReportZst))
		if err != nil {
			return nil, fmt.Errorf("get job %s: %w", id, err)
		}
		var r report.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("get job %s: unmarshal report: %w", id, err)
		}
		j.Report = &r
	}

	log.Debug().Str("jobId", id).Str("status", j.Status).Bool("found", true).Msg("GetJob: job retrieved")
	return j, nil
}
