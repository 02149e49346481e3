// Package retry повторяет идемпотентные чтения с экспоненциальной задержкой.
package retry

import (
	"context"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"

	"github.com/cenkalti/backoff/v4"
)

// Policy параметры повторов
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig строит политику из конфигурации
func FromConfig(cfg *config.RetryConfig) Policy {
	if cfg == nil {
		return Policy{MaxAttempts: 1}
	}
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: time.Duration(cfg.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxIntervalMs) * time.Millisecond,
	}
}

// Do выполняет op до MaxAttempts раз. Ошибки apperror (not found, validation...)
// не повторяются: они детерминированы.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func isPermanent(err error) bool {
	for _, kind := range []apperror.Kind{
		apperror.KindNotFound,
		apperror.KindValidation,
		apperror.KindConflict,
		apperror.KindUnauthorized,
		apperror.KindForbidden,
	} {
		if apperror.Is(err, kind) {
			return true
		}
	}
	return false
}
