// Package client is a small HTTP client for the clip generation API. It
// covers submission, status reads and a polling loop that waits for a clip
// to reach a terminal state.
package client

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

const defaultRequestTimeout = 30 * time.Second

// Clip statuses as they appear on the wire.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SubmitRequest asks the service to generate a clip from a source image.
type SubmitRequest struct {
	ImageURL  string `json:"image_url"`
	Prompt    string `json:"prompt,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// SubmitResponse is the accepted-submission payload.
type SubmitResponse struct {
	ClipID           string `json:"clip_id"`
	ProjectID        string `json:"project_id"`
	Status           string `json:"status"`
	CreditsRemaining int    `json:"credits_remaining"`
	EstimatedTime    int    `json:"estimated_time"`
}

// StatusResponse is one status read of a clip.
type StatusResponse struct {
	ClipID        string `json:"clip_id"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	VideoURL      string `json:"video_url,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	EstimatedTime int    `json:"estimated_time"`
}

// Terminal reports whether the status will not change on further polls.
func (s *StatusResponse) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// APIError is a non-2xx response decoded from the service's error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to one service instance on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client for the given base URL (scheme and host, no trailing
// path) and bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitClip starts a generation from an image URL.
func (c *Client) SubmitClip(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, fmt.Errorf("image_url is required")
	}
	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/clips", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClipStatus reads the current state of a clip.
func (c *Client) ClipStatus(ctx context.Context, clipID string) (*StatusResponse, error) {
	if strings.TrimSpace(clipID) == "" {
		return nil, fmt.Errorf("clip id is required")
	}
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/clips/"+clipID+"/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		// Best effort decode; plain-text bodies keep the raw message.
		var envelope APIError
		if json.Unmarshal(raw, &envelope) == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
