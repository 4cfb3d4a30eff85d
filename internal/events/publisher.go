// Package events publishes analysis lifecycle events to Amazon EventBridge
// so downstream consumers (alerts, dashboards) can react to new scores.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/call-sentiment/internal/sentiment"
)

const (
	// Source is the EventBridge source of every event published here.
	Source = "call-sentiment"

	// DetailTypeAnalysisCompleted marks a finished analysis.
	DetailTypeAnalysisCompleted = "AnalysisCompleted"
)

// AnalysisCompleted is the detail payload of an AnalysisCompleted event.
type AnalysisCompleted struct {
	ReportID      string                  `json:"reportId"`
	VideoURL      string                  `json:"videoUrl"`
	Title         string                  `json:"title,omitempty"`
	JobID         string                  `json:"jobId"`
	Cached        bool                    `json:"cached"`
	Score         float64                 `json:"score"`
	Delta         float64                 `json:"delta"`
	SentenceCount int                     `json:"sentenceCount"`
	Counts        map[sentiment.Label]int `json:"counts"`
	CompletedAt   time.Time               `json:"completedAt"`
}

// PutEventsAPI is the subset of *eventbridge.Client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends events to one bus.
type Publisher struct {
	client  PutEventsAPI
	busName string
}

// NewPublisher creates a Publisher for busName ("" means the default bus).
func NewPublisher(client PutEventsAPI, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// AnalysisCompleted publishes e.
func (p *Publisher) AnalysisCompleted(ctx context.Context, e AnalysisCompleted) error {
	detail, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", DetailTypeAnalysisCompleted, err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(DetailTypeAnalysisCompleted),
		Detail:     aws.String(string(detail)),
		Time:       aws.Time(e.CompletedAt),
	}
	if p.busName != "" {
		entry.EventBusName = aws.String(p.busName)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		log.Error().Err(err).Str("reportId", e.ReportID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("reportId", e.ReportID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("reportId", e.ReportID).Str("bus", p.busName).Msg("AnalysisCompleted emitted to EventBridge")
	return nil
}
