package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// NewPool connects and pings, retrying with exponential backoff while the
// database comes up.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	var pool *pgxpool.Pool

	backoff := retry.WithMaxRetries(5, retry.NewExponential(250*time.Millisecond))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		p, err := pgxpool.NewWithConfig(attemptCtx, cfg)
		if err != nil {
			return err
		}

		if err := p.Ping(attemptCtx); err != nil {
			p.Close()
			return retry.RetryableError(err)
		}

		pool = p
		return nil
	})

	if err != nil {
		return nil, err
	}

	return pool, nil
}
