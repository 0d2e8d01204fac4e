package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"ragqa/internal/domain"
)

// RetryPolicy bounds retries of provider calls. Only errors wrapping
// domain.ErrTransientProvider are retried. The zero value makes one attempt.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts.
func (p RetryPolicy) Do(ctx context.Context, logger log.FieldLogger, stage string, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrTransientProvider) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithFields(log.Fields{
			"stage":   stage,
			"attempt": attempt,
		}).Warnf("retrying in %s", wait.Round(time.Millisecond))
	}
	return backoff.RetryNotify(op, p.backOff(ctx), notify)
}
