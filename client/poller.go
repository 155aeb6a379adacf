package client

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when the attempt ceiling is reached before the
// clip turns terminal. The clip keeps generating server-side; the caller can
// resume polling later.
var ErrPollTimeout = errors.New("polling attempt limit reached")

const (
	defaultPollInterval = 4 * time.Second
	defaultMaxAttempts  = 60
)

// PollOptions tunes the polling loop. The zero value uses the defaults.
type PollOptions struct {
	// Interval between status reads. Defaults to 4s.
	Interval time.Duration
	// MaxAttempts caps the number of status reads. Defaults to 60.
	MaxAttempts int
	// OnProgress, when set, is called after every successful read.
	OnProgress func(*StatusResponse)
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	return o
}

// PollClip reads the clip status on a fixed interval until it reaches a
// terminal state, the context is cancelled, or the attempt ceiling is hit.
// A read already in flight is never cancelled by the ticker; the loop only
// stops scheduling new ones. On ErrPollTimeout the last observed status is
// returned alongside the error.
func (c *Client) PollClip(ctx context.Context, clipID string, opts PollOptions) (*StatusResponse, error) {
	opts = opts.withDefaults()

	var last *StatusResponse
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		status, err := c.ClipStatus(ctx, clipID)
		if err != nil {
			return last, err
		}
		last = status
		if opts.OnProgress != nil {
			opts.OnProgress(status)
		}
		if status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, ErrPollTimeout
}
