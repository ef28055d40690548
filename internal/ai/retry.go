package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingProvider wraps a Provider with a bounded retry policy: the
// original attempt plus MaxRetries more, with exponential backoff between
// attempts. Context cancellation stops the retries.
type RetryingProvider struct {
	Inner           Provider
	MaxRetries      uint64
	InitialInterval time.Duration
}

func NewRetryingProvider(inner Provider) *RetryingProvider {
	return &RetryingProvider{
		Inner:           inner,
		MaxRetries:      1,
		InitialInterval: 500 * time.Millisecond,
	}
}

func (p *RetryingProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}

	var reply string
	op := func() error {
		var err error
		reply, err = p.Inner.Chat(ctx, messages)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx))
	if err != nil {
		return "", err
	}
	return reply, nil
}
