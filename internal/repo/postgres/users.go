package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/observability"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UsersRepo struct {
	db   DBTX
	prom *observability.Prom
}

func NewUsersRepo(db DBTX, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

const userColumns = `id, email, first_name, last_name, password_hash, phone_number, address,
	role, verified, active, hashed_token, token_expires_at, password_changed_at, registered_at`

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.PhoneNumber,
		&u.Address,
		&u.Role,
		&u.Verified,
		&u.Active,
		&u.HashedToken,
		&u.TokenExpiresAt,
		&u.PasswordChangedAt,
		&u.RegisteredAt,
	)
	return u, err
}

// mapNoRows treats a malformed uuid like an absent row.
func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return user.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation {
		return user.ErrNotFound
	}
	return err
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (u user.User, err error) {
	err = r.observe("users.create", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx, `
			INSERT INTO users (email, first_name, last_name, password_hash, phone_number, address,
				role, hashed_token, token_expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+userColumns,
			user.NormalizeEmail(nu.Email),
			nu.FirstName,
			nu.LastName,
			nu.PasswordHash,
			nu.PhoneNumber,
			nu.Address,
			string(nu.Role),
			nu.HashedToken,
			nu.TokenExpiresAt,
		))
		return scanErr
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`,
			user.NormalizeEmail(email),
		))
		return scanErr
	})
	return u, mapNoRows(err)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))
		return scanErr
	})
	return u, mapNoRows(err)
}

// GetByTokenHash only matches a token whose expiry is strictly after now.
func (r *UsersRepo) GetByTokenHash(ctx context.Context, hash string, now time.Time) (u user.User, err error) {
	err = r.observe("users.get_by_token", func() error {
		var scanErr error
		u, scanErr = scanUser(r.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users
			 WHERE hashed_token = $1 AND token_expires_at > $2`,
			hash, now,
		))
		return scanErr
	})
	return u, mapNoRows(err)
}

// MarkVerified only matches while tokenHash is still the live token in the
// slot, so of two concurrent confirmations exactly one updates a row.
func (r *UsersRepo) MarkVerified(ctx context.Context, id, tokenHash string, now time.Time) error {
	return r.exec(ctx, "users.mark_verified", `
		UPDATE users
		SET verified = TRUE, hashed_token = NULL, token_expires_at = NULL
		WHERE id = $1 AND hashed_token = $2 AND token_expires_at > $3`, id, tokenHash, now)
}

func (r *UsersRepo) SetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return r.exec(ctx, "users.set_token", `
		UPDATE users
		SET hashed_token = $2, token_expires_at = $3
		WHERE id = $1`, id, hash, expiresAt)
}

func (r *UsersRepo) ClearToken(ctx context.Context, id string) error {
	return r.exec(ctx, "users.clear_token", `
		UPDATE users
		SET hashed_token = NULL, token_expires_at = NULL
		WHERE id = $1`, id)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	return r.exec(ctx, "users.update_password", `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, hashed_token = NULL, token_expires_at = NULL
		WHERE id = $1`, id, passwordHash, changedAt)
}

// ResetPassword is UpdatePassword guarded by the reset token, with the same
// single-winner semantics as MarkVerified.
func (r *UsersRepo) ResetPassword(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	return r.exec(ctx, "users.reset_password", `
		UPDATE users
		SET password_hash = $3, password_changed_at = $4, hashed_token = NULL, token_expires_at = NULL
		WHERE id = $1 AND hashed_token = $2 AND token_expires_at > $4`, id, tokenHash, passwordHash, changedAt)
}

func (r *UsersRepo) Deactivate(ctx context.Context, id string) error {
	return r.exec(ctx, "users.deactivate", `UPDATE users SET active = FALSE WHERE id = $1`, id)
}

// Delete is idempotent: removing an absent row succeeds.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	err := r.observe("users.delete", func() error {
		_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if errors.Is(mapNoRows(err), user.ErrNotFound) {
		return nil
	}
	return err
}

func (r *UsersRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag
	err := r.observe(op, func() error {
		var execErr error
		tag, execErr = r.db.Exec(ctx, sql, args...)
		return execErr
	})
	if err != nil {
		return mapNoRows(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
