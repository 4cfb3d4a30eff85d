package metrics

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "sentiment-lambda"
	defer func() { functionName = "" }()

	r := New()
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "sentiment-lambda" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	buf := captureOutput(t)
	functionName = ""

	New().
		Dimension("Stage", "upload").
		Metric("UploadBytes", 1048576, UnitBytes).
		Duration("UploadMs", 1500*time.Millisecond).
		Property("jobId", "abc-123").
		Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}

	awsMap, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]interface{})
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, cw["Namespace"])
	}

	if doc["Stage"] != "upload" {
		t.Errorf("expected Stage=upload, got %v", doc["Stage"])
	}
	if doc["UploadMs"] != float64(1500) {
		t.Errorf("expected UploadMs=1500, got %v", doc["UploadMs"])
	}
	if doc["UploadBytes"] != float64(1048576) {
		t.Errorf("expected UploadBytes=1048576, got %v", doc["UploadBytes"])
	}
	if doc["jobId"] != "abc-123" {
		t.Errorf("expected jobId=abc-123, got %v", doc["jobId"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	buf := captureOutput(t)

	New().Flush()

	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Discard(t *testing.T) {
	SetOutput(io.Discard)
	defer SetOutput(os.Stdout)

	// Must not panic or write anywhere visible.
	New().Count("Calls").Flush()
}

func TestRecorder_Chaining(t *testing.T) {
	functionName = ""
	rec := New().
		Dimension("Stage", "poll").
		Metric("PollIterations", 4, UnitCount).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Stage"] != "poll" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["PollIterations"] != float64(4) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if m := rec.metrics["Calls"]; m.Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", m.Unit)
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}
