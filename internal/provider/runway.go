package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"echoes/internal/config"
)

const (
	runwayDefaultBaseURL = "https://api.dev.runwayml.com"
	runwayAPIVersion     = "2024-11-06"
)

// Runway drives the Runway image-to-video task API. Jobs are submitted to
// /v1/image_to_video and observed through /v1/tasks/{id}.
type Runway struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewRunway(cfg config.Config) (*Runway, error) {
	apiKey := strings.TrimSpace(cfg.RunwayAPIKey)
	if apiKey == "" {
		return nil, errors.New("runway api key is not configured")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.RunwayBaseURL), "/")
	if baseURL == "" {
		baseURL = runwayDefaultBaseURL
	}

	model := strings.TrimSpace(cfg.RunwayModel)
	if model == "" {
		model = "gen3a_turbo"
	}

	return &Runway{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (r *Runway) ID() string {
	return "runway"
}

type runwaySubmitRequest struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText,omitempty"`
	Model       string `json:"model"`
	Ratio       string `json:"ratio"`
	Duration    int    `json:"duration"`
}

type runwaySubmitResponse struct {
	ID string `json:"id"`
}

type runwayTaskResponse struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

func (r *Runway) Submit(ctx context.Context, request GenerateClipRequest) (string, error) {
	payload := runwaySubmitRequest{
		PromptImage: request.ImageURL,
		PromptText:  strings.TrimSpace(request.Prompt),
		Model:       r.model,
		Ratio:       request.Ratio.String(),
		Duration:    request.DurationSec,
	}

	body, err := r.do(ctx, http.MethodPost, "/v1/image_to_video", payload)
	if err != nil {
		return "", err
	}

	var submission runwaySubmitResponse
	if err := json.Unmarshal(body, &submission); err != nil {
		return "", fmt.Errorf("runway decode submission: %w", err)
	}
	if submission.ID == "" {
		return "", fmt.Errorf("runway submission response missing task id")
	}

	logrus.WithFields(logrus.Fields{
		"job_id": submission.ID,
		"ratio":  payload.Ratio,
	}).Info("runway_job_submitted")

	return submission.ID, nil
}

func (r *Runway) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	body, err := r.do(ctx, http.MethodGet, "/v1/tasks/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var task runwayTaskResponse
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("runway decode task: %w", err)
	}

	status := &JobStatus{RawStatus: task.Status}
	switch strings.ToUpper(strings.TrimSpace(task.Status)) {
	case "PENDING", "THROTTLED":
		status.State = JobStatePending
	case "RUNNING":
		status.State = JobStateProcessing
	case "SUCCEEDED":
		if len(task.Output) == 0 || strings.TrimSpace(task.Output[0]) == "" {
			status.State = JobStateFailed
			status.ErrorMessage = "provider reported success without an output video"
			break
		}
		status.State = JobStateCompleted
		status.VideoURL = task.Output[0]
	case "FAILED", "CANCELLED":
		status.State = JobStateFailed
		status.ErrorMessage = task.Failure
		if status.ErrorMessage == "" {
			status.ErrorMessage = "generation failed"
		}
	default:
		// Unrecognised states keep the clip in flight rather than
		// resurrecting it to pending or failing it prematurely.
		logrus.WithFields(logrus.Fields{
			"job_id": jobID,
			"status": task.Status,
		}).Warn("runway_unknown_job_status")
		status.State = JobStateProcessing
	}

	return status, nil
}

func (r *Runway) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("runway marshal request: %w", err)
		}
		reqBody = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("runway create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("runway read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &RequestError{
			Provider:   r.ID(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}
