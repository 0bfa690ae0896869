package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPAnalyzer forwards frames to a face-analysis service:
//
//	POST {endpoint}/init    -> 2xx when the model is ready
//	POST {endpoint}/frames  -> body FramePayload, 2xx on success
type HTTPAnalyzer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPAnalyzer returns an analyzer for endpoint with a per-request timeout.
func NewHTTPAnalyzer(endpoint string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Init asks the service to load its model.
func (a *HTTPAnalyzer) Init(ctx context.Context) error {
	return a.post(ctx, "/init", nil)
}

// Analyze submits one frame.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, p FramePayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: marshal frame: %v", ErrAnalysis, err)
	}
	return a.post(ctx, "/frames", body)
}

func (a *HTTPAnalyzer) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrAnalysis, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAnalysis, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", ErrAnalysis, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogAnalyzer stands in for the analysis service when no endpoint is configured.
type LogAnalyzer struct {
	logger *slog.Logger
}

// NewLogAnalyzer returns an analyzer that only logs.
func NewLogAnalyzer(logger *slog.Logger) *LogAnalyzer {
	return &LogAnalyzer{logger: logger}
}

func (a *LogAnalyzer) Init(ctx context.Context) error {
	a.logger.Info("analysis endpoint not configured; frames will be logged only")
	return nil
}

func (a *LogAnalyzer) Analyze(ctx context.Context, p FramePayload) error {
	a.logger.Debug("frame captured", "trace_id", p.TraceID, "encoded_bytes", len(p.Frame))
	return nil
}
