package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type retrying struct {
	next       Provider
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// WithRetry wraps p so rate-limited and unavailable calls are retried with
// exponential backoff. Other failures return immediately. maxRetries <= 0
// returns p unchanged.
func WithRetry(p Provider, maxRetries int) Provider {
	if maxRetries <= 0 {
		return p
	}
	return &retrying{
		next:       p,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 8 * time.Second
			b.MaxElapsedTime = time.Minute
			return b
		},
	}
}

func (r *retrying) Name() models.ProviderType {
	return r.next.Name()
}

func (r *retrying) SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error) {
	var out *models.Completion
	attempt := 0

	op := func() error {
		attempt++
		c, err := r.next.SendPrompt(ctx, req)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			logging.Log("providers", "retrying provider call",
				"provider", r.next.Name(), "model", req.Model, "attempt", attempt, "error", err)
			return err
		}
		out = c
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return out, nil
}

// Retryable reports whether err is a transient provider failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
