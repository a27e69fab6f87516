package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo is an in-process Secret Store. The mutex stands in for the
// database's unique index and row-level write serialisation.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // {"id": user}
	byEmail map[string]string    // {"email": id}
	now     func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UsersRepo) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := user.NormalizeEmail(nu.Email)

	if _, taken := r.byEmail[email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	hash := nu.HashedToken
	exp := nu.TokenExpiresAt

	u := user.User{
		ID:             uuid.NewString(),
		Email:          email,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		PasswordHash:   nu.PasswordHash,
		PhoneNumber:    nu.PhoneNumber,
		Address:        nu.Address,
		Role:           nu.Role,
		Verified:       false,
		Active:         true,
		HashedToken:    &hash,
		TokenExpiresAt: &exp,
		RegisteredAt:   r.now().UTC(),
	}

	r.items[u.ID] = u
	r.byEmail[email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByTokenHash(_ context.Context, hash string, now time.Time) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.HashedToken != nil && *u.HashedToken == hash && u.HasTokenAt(now) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) MarkVerified(_ context.Context, id, tokenHash string, now time.Time) error {
	return r.consume(id, tokenHash, now, func(u *user.User) {
		u.Verified = true
	})
}

func (r *UsersRepo) SetToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	return r.update(id, func(u *user.User) {
		u.HashedToken = &hash
		u.TokenExpiresAt = &expiresAt
	})
}

func (r *UsersRepo) ClearToken(_ context.Context, id string) error {
	return r.update(id, func(u *user.User) {
		u.HashedToken = nil
		u.TokenExpiresAt = nil
	})
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	return r.update(id, func(u *user.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
		u.HashedToken = nil
		u.TokenExpiresAt = nil
	})
}

func (r *UsersRepo) ResetPassword(_ context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	return r.consume(id, tokenHash, changedAt, func(u *user.User) {
		u.PasswordHash = passwordHash
		u.PasswordChangedAt = &changedAt
	})
}

func (r *UsersRepo) Deactivate(_ context.Context, id string) error {
	return r.update(id, func(u *user.User) {
		u.Active = false
	})
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.items, id)
	}
	return nil
}

// Len is used by tests to assert on row counts.
func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *UsersRepo) update(id string, fn func(*user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(&u)
	r.items[id] = u
	return nil
}

// consume applies fn and empties the token slot, but only while tokenHash is
// the live token at now. Otherwise the row counts as absent.
func (r *UsersRepo) consume(id, tokenHash string, now time.Time, fn func(*user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok || u.HashedToken == nil || *u.HashedToken != tokenHash || !u.HasTokenAt(now) {
		return user.ErrNotFound
	}
	fn(&u)
	u.HashedToken = nil
	u.TokenExpiresAt = nil
	r.items[id] = u
	return nil
}
