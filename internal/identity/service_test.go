package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/repo/memory"
	"github.com/geocoder89/propertypro/internal/security"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T) (*identity.Service, *memory.UsersRepo, *security.TokenCodec, *clock) {
	t.Helper()

	codec, err := security.NewTokenCodec("test-token-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	clk := &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	repo := memory.NewUsersRepo()
	svc := identity.NewService(repo, codec, identity.WithClock(clk.Now))

	return svc, repo, codec, clk
}

func candidate(t *testing.T, codec *security.TokenCodec, email string) (identity.Candidate, security.IssuedToken) {
	t.Helper()

	tok, err := codec.Issue(security.DefaultTokenBytes)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	return identity.Candidate{
		Email:     email,
		Password:  "secret123",
		FirstName: "A",
		LastName:  "B",
		Role:      user.RoleUser,
		TokenHash: tok.Hash,
	}, tok
}

func TestCreate_StoresHashedPasswordAndToken(t *testing.T) {
	svc, _, codec, clk := setup(t)
	ctx := context.Background()

	c, tok := candidate(t, codec, "A@b.com")

	u, err := svc.Create(ctx, c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if u.Email != "a@b.com" {
		t.Fatalf("email not normalised: %q", u.Email)
	}
	if u.PasswordHash == c.Password {
		t.Fatalf("password stored in plaintext")
	}
	if !svc.CheckPassword(u, c.Password) {
		t.Fatalf("stored hash does not verify")
	}
	if u.Verified || !u.Active || u.Role != user.RoleUser {
		t.Fatalf("unexpected initial state: %+v", u)
	}
	if u.PasswordChangedAt != nil {
		t.Fatalf("password_changed_at must be empty at registration")
	}
	if u.HashedToken == nil || *u.HashedToken != tok.Hash || *u.HashedToken == tok.Plaintext {
		t.Fatalf("token slot must hold the hash only")
	}
	if want := clk.Now().Add(identity.ConfirmationTokenTTL); !u.TokenExpiresAt.Equal(want) {
		t.Fatalf("token expiry=%s want %s", u.TokenExpiresAt, want)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _, codec, _ := setup(t)
	ctx := context.Background()

	c, _ := candidate(t, codec, "a@b.com")
	if _, err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c2, _ := candidate(t, codec, "A@B.COM")
	if _, err := svc.Create(ctx, c2); !errors.Is(err, identity.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreate_ConcurrentDuplicate(t *testing.T) {
	svc, repo, codec, _ := setup(t)
	ctx := context.Background()

	c1, _ := candidate(t, codec, "race@b.com")
	c2, _ := candidate(t, codec, "race@b.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []identity.Candidate{c1, c2} {
		wg.Add(1)
		go func(i int, c identity.Candidate) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, c)
		}(i, c)
	}
	wg.Wait()

	succeeded, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, identity.ErrDuplicateEmail):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 || duplicates != 1 || repo.Len() != 1 {
		t.Fatalf("succeeded=%d duplicates=%d rows=%d", succeeded, duplicates, repo.Len())
	}
}

func TestFindByToken_ReuseAndExpiry(t *testing.T) {
	svc, _, codec, clk := setup(t)
	ctx := context.Background()

	c, tok := candidate(t, codec, "a@b.com")
	created, _ := svc.Create(ctx, c)

	found, err := svc.FindByToken(ctx, codec.Hash(tok.Plaintext))
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("wrong user returned")
	}

	if err := svc.MarkVerified(ctx, found.ID, codec.Hash(tok.Plaintext)); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	verified, _ := svc.FindByID(ctx, found.ID)
	if !verified.Verified || verified.HashedToken != nil || verified.TokenExpiresAt != nil {
		t.Fatalf("verify must set verified and clear token fields: %+v", verified)
	}

	if _, err := svc.FindByToken(ctx, codec.Hash(tok.Plaintext)); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("reused token: expected ErrInvalidOrExpiredToken, got %v", err)
	}

	// expired behaves exactly like never issued
	c2, tok2 := candidate(t, codec, "c@d.com")
	_, _ = svc.Create(ctx, c2)
	clk.Advance(identity.ConfirmationTokenTTL)

	_, errExpired := svc.FindByToken(ctx, codec.Hash(tok2.Plaintext))
	_, errUnknown := svc.FindByToken(ctx, codec.Hash("never-issued"))

	if !errors.Is(errExpired, identity.ErrInvalidOrExpiredToken) || errExpired != errUnknown {
		t.Fatalf("expired=%v unknown=%v must be identical", errExpired, errUnknown)
	}

	if _, err := svc.FindByToken(ctx, ""); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("empty hash: got %v", err)
	}
}

func TestMarkVerified_TokenIsSingleUseUnderConcurrency(t *testing.T) {
	svc, _, codec, _ := setup(t)
	ctx := context.Background()

	c, tok := candidate(t, codec, "a@b.com")
	if _, err := svc.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 8
	var looked, done sync.WaitGroup
	looked.Add(n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		done.Add(1)
		go func() {
			defer done.Done()

			u, err := svc.FindByToken(ctx, tok.Hash)
			looked.Done()
			if err != nil {
				errs <- err
				return
			}
			// every caller has seen the live token before anyone consumes it
			looked.Wait()
			errs <- svc.MarkVerified(ctx, u.ID, tok.Hash)
		}()
	}
	done.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, identity.ErrInvalidOrExpiredToken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("confirmations accepted for one token: %d, want 1", accepted)
	}
}

func TestResetPassword_RejectsSupersededAndReusedTokens(t *testing.T) {
	svc, _, codec, clk := setup(t)
	ctx := context.Background()

	c, _ := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	first, err := svc.IssuePasswordResetToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("IssuePasswordResetToken: %v", err)
	}
	if _, err := svc.FindByToken(ctx, first.Hash); err != nil {
		t.Fatalf("FindByToken: %v", err)
	}

	// a newer forgot-password request lands between lookup and write
	second, err := svc.IssuePasswordResetToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("IssuePasswordResetToken: %v", err)
	}

	if err := svc.ResetPassword(ctx, u.ID, first.Hash, "newsecret456"); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("superseded token: expected ErrInvalidOrExpiredToken, got %v", err)
	}

	clk.Advance(time.Minute)
	if err := svc.ResetPassword(ctx, u.ID, second.Hash, "newsecret456"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := svc.ResetPassword(ctx, u.ID, second.Hash, "another789"); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("reused token: expected ErrInvalidOrExpiredToken, got %v", err)
	}

	got, _ := svc.FindByID(ctx, u.ID)
	if !svc.CheckPassword(got, "newsecret456") {
		t.Fatalf("winning reset must store its password")
	}
	if got.PasswordChangedAt == nil || !got.PasswordChangedAt.Equal(clk.Now()) {
		t.Fatalf("password_changed_at not stamped: %+v", got.PasswordChangedAt)
	}

	clk.Advance(time.Minute)
	third, _ := svc.IssuePasswordResetToken(ctx, u.ID)
	clk.Advance(identity.ResetTokenTTL)
	if err := svc.ResetPassword(ctx, u.ID, third.Hash, "late12345"); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("expired token: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestIssuePasswordResetToken_InvalidatesPrevious(t *testing.T) {
	svc, _, codec, clk := setup(t)
	ctx := context.Background()

	c, confirm := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	reset, err := svc.IssuePasswordResetToken(ctx, u.ID)
	if err != nil {
		t.Fatalf("IssuePasswordResetToken: %v", err)
	}

	if _, err := svc.FindByToken(ctx, confirm.Hash); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("previous token should be unusable, got %v", err)
	}

	got, err := svc.FindByToken(ctx, codec.Hash(reset.Plaintext))
	if err != nil || got.ID != u.ID {
		t.Fatalf("reset token lookup failed: %v", err)
	}
	if want := clk.Now().Add(identity.ResetTokenTTL); !got.TokenExpiresAt.Equal(want) {
		t.Fatalf("reset expiry=%s want %s", got.TokenExpiresAt, want)
	}

	clk.Advance(identity.ResetTokenTTL + time.Second)
	if _, err := svc.FindByToken(ctx, reset.Hash); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("reset token should expire after 10 minutes, got %v", err)
	}
}

func TestClearToken(t *testing.T) {
	svc, _, codec, _ := setup(t)
	ctx := context.Background()

	c, tok := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	if err := svc.ClearToken(ctx, u.ID); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, err := svc.FindByToken(ctx, tok.Hash); !errors.Is(err, identity.ErrInvalidOrExpiredToken) {
		t.Fatalf("cleared token still usable: %v", err)
	}
	if err := svc.ClearToken(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdatePassword_RevocationWindow(t *testing.T) {
	svc, _, codec, clk := setup(t)
	ctx := context.Background()

	c, _ := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	t1 := clk.Now()

	changed, err := svc.HasPasswordChangedSince(ctx, u.ID, t1)
	if err != nil || changed {
		t.Fatalf("fresh account must not revoke: changed=%v err=%v", changed, err)
	}

	clk.Advance(time.Minute)
	if err := svc.UpdatePassword(ctx, u.ID, "newsecret456"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	t2 := clk.Now()

	updated, _ := svc.FindByID(ctx, u.ID)
	if !svc.CheckPassword(updated, "newsecret456") || svc.CheckPassword(updated, "secret123") {
		t.Fatalf("password not replaced")
	}
	if updated.PasswordChangedAt == nil || !updated.PasswordChangedAt.Equal(t2) {
		t.Fatalf("password_changed_at not stamped")
	}
	if updated.HashedToken != nil {
		t.Fatalf("token slot must be cleared on password change")
	}

	if changed, _ := svc.HasPasswordChangedSince(ctx, u.ID, t1); !changed {
		t.Fatalf("session from T1 must be revoked")
	}

	t3 := t2.Add(time.Second)
	if changed, _ := svc.HasPasswordChangedSince(ctx, u.ID, t3); changed {
		t.Fatalf("session from T3 must be accepted")
	}
}

func TestFindSessionUser(t *testing.T) {
	svc, _, codec, _ := setup(t)
	ctx := context.Background()

	c, _ := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	if _, err := svc.FindSessionUser(ctx, u.ID, "A@b.com"); err != nil {
		t.Fatalf("FindSessionUser: %v", err)
	}
	if _, err := svc.FindSessionUser(ctx, u.ID, "other@b.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("email mismatch: got %v", err)
	}

	if err := svc.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.FindSessionUser(ctx, u.ID, "a@b.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("inactive user: got %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	svc, _, codec, _ := setup(t)
	ctx := context.Background()

	c, _ := candidate(t, codec, "a@b.com")
	u, _ := svc.Create(ctx, c)

	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, u.ID); err != nil {
			t.Fatalf("Delete #%d: %v", i, err)
		}
	}
	if _, err := svc.FindByCredentials(ctx, "a@b.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type failingStore struct {
	*memory.UsersRepo
}

func (failingStore) GetByEmail(context.Context, string) (user.User, error) {
	return user.User{}, errors.New("connection refused")
}

func TestStorageErrorsAreClassified(t *testing.T) {
	codec, _ := security.NewTokenCodec("k")
	svc := identity.NewService(failingStore{memory.NewUsersRepo()}, codec)

	_, err := svc.FindByCredentials(context.Background(), "a@b.com")
	if !errors.Is(err, identity.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
