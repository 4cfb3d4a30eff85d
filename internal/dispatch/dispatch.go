// Package dispatch hands analyses from the API Lambda to the worker Lambda.
// The API cannot run an analysis inside a gateway request, so it invokes
// the worker asynchronously and lets the browser poll the job record.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"
)

// TypeAnalyze is the event type of an analysis request.
const TypeAnalyze = "analyze"

// Event is the worker invocation payload.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	VideoURL  string `json:"videoUrl"`
}

// Invoker is the subset of *lambda.Client used by WorkerInvoker.
type Invoker interface {
	Invoke(ctx context.Context, params *lambdasvc.InvokeInput, optFns ...func(*lambdasvc.Options)) (*lambdasvc.InvokeOutput, error)
}

// WorkerInvoker starts analyses on the worker Lambda.
type WorkerInvoker struct {
	client   Invoker
	function string
}

// NewWorkerInvoker creates a WorkerInvoker for the named function (name or ARN).
func NewWorkerInvoker(client Invoker, function string) *WorkerInvoker {
	return &WorkerInvoker{client: client, function: function}
}

// Dispatch sends an analyze event for jobID with InvocationType=Event, so
// it returns as soon as Lambda has queued the invocation.
func (w *WorkerInvoker) Dispatch(ctx context.Context, jobID, videoURL string) error {
	payload, err := json.Marshal(Event{Type: TypeAnalyze, RequestID: jobID, VideoURL: videoURL})
	if err != nil {
		return fmt.Errorf("marshal worker event: %w", err)
	}

	log.Debug().Int("payloadSize", len(payload)).Str("jobId", jobID).Msg("Invoking worker Lambda asynchronously")

	out, err := w.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(w.function),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to invoke worker Lambda")
		return fmt.Errorf("invoke worker lambda: %w", err)
	}
	if out.StatusCode != http.StatusAccepted {
		return fmt.Errorf("invoke worker lambda: unexpected status %d", out.StatusCode)
	}

	log.Info().Str("jobId", jobID).Str("function", w.function).Msg("Worker Lambda invoked")
	return nil
}
