package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geocoder89/propertypro/internal/config"
	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/security"
)

// Querier is satisfied by *pgxpool.Pool and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureAdminUser inserts a verified admin when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no user with that email exists yet.
// It reports whether a row was created.
func EnsureAdminUser(ctx context.Context, q Querier, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	email := user.NormalizeEmail(cfg.AdminEmail)

	var dummy string

	err := q.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = $1`, email).Scan(&dummy)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	// A concurrent seeder may insert between the lookup and here.
	tag, err := q.Exec(ctx,
		`INSERT INTO users (email, first_name, last_name, password_hash, role, verified)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT DO NOTHING`,
		email, cfg.AdminFirstName, cfg.AdminLastName, hash, string(user.RoleAdmin),
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}
