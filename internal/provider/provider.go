package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"echoes/internal/imaging"
)

// JobState is the normalised lifecycle state of a provider generation job.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether the job will not change state again.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobStatus is one observation of a provider job.
type JobStatus struct {
	State        JobState
	VideoURL     string
	ErrorMessage string
	// RawStatus keeps the provider's own status string for logging.
	RawStatus string
}

// GenerateClipRequest carries everything an adapter needs to submit a job.
type GenerateClipRequest struct {
	ImageURL    string
	Prompt      string
	Ratio       imaging.Ratio
	DurationSec int
}

// VideoProvider is an image-to-video generation backend. Submit returns the
// provider's job id; Status maps the provider's job representation onto
// JobStatus. Both are single round trips, polling loops live in the caller.
type VideoProvider interface {
	ID() string
	Submit(ctx context.Context, request GenerateClipRequest) (string, error)
	Status(ctx context.Context, jobID string) (*JobStatus, error)
}

// RequestError is a provider HTTP failure with enough detail to decide
// whether the request is worth retrying.
type RequestError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the failure is transient. Client errors other
// than rate limiting are permanent.
func (e *RequestError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode >= 500
}

// DownloadVideo fetches generated video bytes from a provider result URL.
// Provider URLs expire, so callers persist the bytes to storage immediately.
func DownloadVideo(ctx context.Context, videoURL string) ([]byte, error) {
	client := &http.Client{Timeout: 120 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read video body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded video is empty")
	}
	return data, nil
}
