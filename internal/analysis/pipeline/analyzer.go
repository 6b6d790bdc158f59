package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnalyzerTimeout = 10 * time.Minute
	maxAnalysisBodyBytes   = 64 << 20
	errorBodyPreviewBytes  = 512
)

// Analysis is the decoded response of the remote analysis service. Each
// field is kept as raw JSON and written to disk unchanged.
type Analysis struct {
	Transcript    json.RawMessage `json:"transcript"`
	Graph         json.RawMessage `json:"graph"`
	CognitiveLoad json.RawMessage `json:"cognitiveLoad"`
	StrData       json.RawMessage `json:"strData"`
}

// Analyzer submits extracted audio for analysis
type Analyzer interface {
	Analyze(ctx context.Context, audioPath, jobID string) (*Analysis, error)
}

type analyzeRequest struct {
	AudioPath string `json:"audio_path"`
	JobID     string `json:"jobId"`
}

// HTTPAnalyzer calls POST {baseURL}/analyze.
type HTTPAnalyzer struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPAnalyzer creates a client for the analysis service at baseURL
func NewHTTPAnalyzer(baseURL string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	return &HTTPAnalyzer{
		endpoint: strings.TrimRight(baseURL, "/") + "/analyze",
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, audioPath, jobID string) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{AudioPath: audioPath, JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreviewBytes))
		msg := strings.TrimSpace(string(preview))
		if msg == "" {
			return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, msg)
	}

	var analysis Analysis
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAnalysisBodyBytes)).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}
	if err := analysis.validate(); err != nil {
		return nil, err
	}

	return &analysis, nil
}

func (a *Analysis) validate() error {
	fields := []struct {
		name  string
		value json.RawMessage
	}{
		{"transcript", a.Transcript},
		{"graph", a.Graph},
		{"cognitiveLoad", a.CognitiveLoad},
		{"strData", a.StrData},
	}
	for _, f := range fields {
		if len(f.value) == 0 || string(f.value) == "null" {
			return fmt.Errorf("malformed analysis response: missing field %q", f.name)
		}
	}
	return nil
}
