package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/clips" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ImageURL != "https://example.com/a.jpg" {
			t.Errorf("image_url = %q", req.ImageURL)
		}
		json.NewEncoder(w).Encode(SubmitResponse{
			ClipID: "clip-1", Status: StatusProcessing, CreditsRemaining: 2, EstimatedTime: 90,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-1")
	resp, err := c.SubmitClip(context.Background(), SubmitRequest{ImageURL: "https://example.com/a.jpg"})
	if err != nil {
		t.Fatalf("SubmitClip: %v", err)
	}
	if resp.ClipID != "clip-1" || resp.Status != StatusProcessing {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSubmitClipRequiresImageURL(t *testing.T) {
	c := New("http://localhost:0", "tok")
	if _, err := c.SubmitClip(context.Background(), SubmitRequest{}); err == nil {
		t.Fatal("expected an error for a missing image_url")
	}
}

func TestClipStatusDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "ERR_FORBIDDEN",
			"message": "resource belongs to another user",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.ClipStatus(context.Background(), "clip-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Code != "ERR_FORBIDDEN" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestPollClipStopsOnTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		status := StatusProcessing
		if n >= 3 {
			status = StatusCompleted
		}
		json.NewEncoder(w).Encode(StatusResponse{
			ClipID: "clip-1", Status: status, Progress: int(n * 30),
			VideoURL: "https://example.com/v.mp4",
		})
	}))
	defer srv.Close()

	var seen []string
	c := New(srv.URL, "tok")
	resp, err := c.PollClip(context.Background(), "clip-1", PollOptions{
		Interval: 5 * time.Millisecond,
		OnProgress: func(s *StatusResponse) {
			seen = append(seen, s.Status)
		},
	})
	if err != nil {
		t.Fatalf("PollClip: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", resp.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if len(seen) != 3 || seen[2] != StatusCompleted {
		t.Errorf("progress callbacks = %v", seen)
	}
}

func TestPollClipAttemptCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(StatusResponse{ClipID: "clip-1", Status: StatusProcessing, Progress: 40})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.PollClip(context.Background(), "clip-1", PollOptions{
		Interval:    time.Millisecond,
		MaxAttempts: 4,
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if resp == nil || resp.Status != StatusProcessing {
		t.Errorf("last status = %+v, want the final observed read", resp)
	}
}

func TestPollClipHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(StatusResponse{ClipID: "clip-1", Status: StatusProcessing})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(srv.URL, "tok")
	_, err := c.PollClip(ctx, "clip-1", PollOptions{
		Interval: time.Hour,
		OnProgress: func(*StatusResponse) {
			cancel()
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
