package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"echoes/internal/config"
)

const klingDefaultBaseURL = "https://api.klingai.com"

// Kling drives the Kling image-to-video task API. Every response is wrapped
// in a {code, message, data} envelope; a non-zero code is an API error even
// on HTTP 200.
type Kling struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewKling(cfg config.Config) (*Kling, error) {
	apiKey := strings.TrimSpace(cfg.KlingAPIKey)
	if apiKey == "" {
		return nil, errors.New("kling api key is not configured")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.KlingBaseURL), "/")
	if baseURL == "" {
		baseURL = klingDefaultBaseURL
	}

	return &Kling{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (k *Kling) ID() string {
	return "kling"
}

type klingSubmitRequest struct {
	ModelName string `json:"model_name"`
	Image     string `json:"image"`
	Prompt    string `json:"prompt,omitempty"`
	Duration  string `json:"duration"`
	Mode      string `json:"mode"`
}

type klingEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type klingTaskData struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Videos []struct {
			URL string `json:"url"`
		} `json:"videos"`
	} `json:"task_result"`
}

func (k *Kling) Submit(ctx context.Context, request GenerateClipRequest) (string, error) {
	payload := klingSubmitRequest{
		ModelName: "kling-v1",
		Image:     request.ImageURL,
		Prompt:    strings.TrimSpace(request.Prompt),
		Duration:  strconv.Itoa(request.DurationSec),
		Mode:      "std",
	}

	data, err := k.do(ctx, http.MethodPost, "/v1/videos/image2video", payload)
	if err != nil {
		return "", err
	}

	var task klingTaskData
	if err := json.Unmarshal(data, &task); err != nil {
		return "", fmt.Errorf("kling decode submission: %w", err)
	}
	if task.TaskID == "" {
		return "", fmt.Errorf("kling submission response missing task id")
	}

	logrus.WithField("job_id", task.TaskID).Info("kling_job_submitted")
	return task.TaskID, nil
}

func (k *Kling) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	data, err := k.do(ctx, http.MethodGet, "/v1/videos/image2video/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	var task klingTaskData
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("kling decode task: %w", err)
	}

	status := &JobStatus{RawStatus: task.TaskStatus}
	switch strings.ToLower(strings.TrimSpace(task.TaskStatus)) {
	case "submitted", "queued":
		status.State = JobStatePending
	case "processing", "generating", "active":
		status.State = JobStateProcessing
	case "succeed":
		url := ""
		if len(task.TaskResult.Videos) > 0 {
			url = strings.TrimSpace(task.TaskResult.Videos[0].URL)
		}
		if url == "" {
			status.State = JobStateFailed
			status.ErrorMessage = "provider reported success without an output video"
			break
		}
		status.State = JobStateCompleted
		status.VideoURL = url
	case "failed":
		status.State = JobStateFailed
		status.ErrorMessage = task.TaskStatusMsg
		if status.ErrorMessage == "" {
			status.ErrorMessage = "generation failed"
		}
	default:
		logrus.WithFields(logrus.Fields{
			"job_id": jobID,
			"status": task.TaskStatus,
		}).Warn("kling_unknown_job_status")
		status.State = JobStateProcessing
	}

	return status, nil
}

func (k *Kling) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("kling marshal request: %w", err)
		}
		reqBody = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("kling create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+k.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kling request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kling read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &RequestError{
			Provider:   k.ID(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var envelope klingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("kling decode envelope: %w", err)
	}
	if envelope.Code != 0 {
		return nil, fmt.Errorf("kling api error %d: %s", envelope.Code, envelope.Message)
	}

	return envelope.Data, nil
}
