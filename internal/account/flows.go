package account

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/notifications"
	"github.com/geocoder89/propertypro/internal/policy"
)

// dummyHash is compared against when the email is unknown so both login
// failures cost one bcrypt verification.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z2ZzP1pRZ6u9xGZ8D6yZ6F7e"

func (s *Service) Register(ctx context.Context, in policy.SignUpInput) (RegistrationResult, error) {
	return s.saga.Run(ctx, in)
}

// ConfirmEmail consumes a confirmation token and starts a session.
func (s *Service) ConfirmEmail(ctx context.Context, plaintext string) (res AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("confirm_email", outcome(err)) }()

	hash := s.tokens.Hash(plaintext)

	u, err := s.ids.FindByToken(ctx, hash)
	if err != nil {
		return AuthResult{}, err
	}

	if err = s.ids.MarkVerified(ctx, u.ID, hash); err != nil {
		return AuthResult{}, err
	}
	u.Verified = true
	u.HashedToken, u.TokenExpiresAt = nil, nil

	res, err = s.startSession(u)
	if err != nil {
		return AuthResult{}, err
	}

	s.sendWelcome(ctx, u)
	return res, nil
}

// Login reports ErrInvalidCredentials for an unknown email, a wrong password
// and a deactivated account alike.
func (s *Service) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("login", outcome(err)) }()

	if err = policy.ValidateSignIn(email, password).Err(); err != nil {
		return AuthResult{}, err
	}

	u, err := s.ids.FindByCredentials(ctx, email)
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		s.ids.CheckPassword(user.User{PasswordHash: dummyHash}, password)
		return AuthResult{}, identity.ErrInvalidCredentials
	case err != nil:
		return AuthResult{}, err
	}

	if !s.ids.CheckPassword(u, password) || !u.Active {
		return AuthResult{}, identity.ErrInvalidCredentials
	}

	if !u.Verified {
		return AuthResult{}, identity.ErrEmailNotVerified
	}

	return s.startSession(u)
}

// ForgotPassword mails a reset link. An unknown or inactive email succeeds
// without side effects. When the mail cannot be sent the token is cleared
// again and ErrMailDelivery is returned.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.AuthEvent("forgot_password", outcome(err)) }()

	if err = policy.ValidateEmailOnly(email).Err(); err != nil {
		return err
	}

	u, err := s.ids.FindByCredentials(ctx, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		s.log.InfoContext(ctx, "password_reset.unknown_email")
		return nil
	}
	if err != nil {
		return err
	}
	if !u.Active {
		return nil
	}

	tok, err := s.ids.IssuePasswordResetToken(ctx, u.ID)
	if err != nil {
		return err
	}

	body, err := notifications.ResetEmail(notifications.LinkData{
		FirstName: u.FirstName,
		Company:   s.cfg.CompanyName,
		Link:      resetLink(s.cfg.BaseURL, tok.Plaintext),
	})
	if err == nil {
		err = s.mailer.Send(ctx, u.Email, notifications.SubjectReset, body)
	}
	if err == nil {
		s.log.InfoContext(ctx, "password_reset.sent", "user_id", u.ID)
		return nil
	}

	sendErr := err
	s.log.WarnContext(ctx, "password_reset.mail_failed", "user_id", u.ID, "err", sendErr)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()

	if clearErr := s.ids.ClearToken(cctx, u.ID); clearErr != nil && !errors.Is(clearErr, identity.ErrUserNotFound) {
		s.log.ErrorContext(ctx, "password_reset.compensation_failed", "user_id", u.ID, "err", clearErr)
		return errors.Join(mailFailure(sendErr), clearErr)
	}

	return mailFailure(sendErr)
}

// ResetPassword consumes a reset token, stores the new password and returns a
// session issued after the change.
func (s *Service) ResetPassword(ctx context.Context, plaintext, password, confirm string) (res AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("reset_password", outcome(err)) }()

	if err = policy.ValidatePasswordReset(password, confirm).Err(); err != nil {
		return AuthResult{}, err
	}

	hash := s.tokens.Hash(plaintext)

	u, err := s.ids.FindByToken(ctx, hash)
	if err != nil {
		return AuthResult{}, err
	}

	if err = s.ids.ResetPassword(ctx, u.ID, hash, password); err != nil {
		return AuthResult{}, err
	}

	s.log.InfoContext(ctx, "password_reset.completed", "user_id", u.ID)
	return s.startSession(u)
}

// ChangePassword requires the current password. Sessions issued before the
// change stop working.
func (s *Service) ChangePassword(ctx context.Context, actor user.User, oldPassword, newPassword, confirm string) (res AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("change_password", outcome(err)) }()

	if err = policy.ValidatePasswordChange(oldPassword, newPassword, confirm).Err(); err != nil {
		return AuthResult{}, err
	}

	u, err := s.ids.FindByID(ctx, actor.ID)
	if err != nil {
		return AuthResult{}, err
	}

	if !s.ids.CheckPassword(u, oldPassword) {
		return AuthResult{}, identity.ErrInvalidCredentials
	}

	if err = s.ids.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		return AuthResult{}, err
	}

	s.log.InfoContext(ctx, "password.changed", "user_id", u.ID)
	return s.startSession(u)
}

func (s *Service) Deactivate(ctx context.Context, actor user.User) (err error) {
	defer func() { s.metrics.AuthEvent("deactivate", outcome(err)) }()

	if err = s.ids.Deactivate(ctx, actor.ID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "account.deactivated", "user_id", actor.ID)
	return nil
}

func (s *Service) Profile(ctx context.Context, id string) (user.Public, error) {
	u, err := s.ids.FindByID(ctx, id)
	if err != nil {
		return user.Public{}, err
	}
	return u.Public(), nil
}

func (s *Service) startSession(u user.User) (AuthResult, error) {
	token, exp, err := s.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return AuthResult{}, oops.In("account").With("step", "issue session").Wrap(err)
	}
	return AuthResult{Token: token, ExpiresAt: exp, User: u.Public()}, nil
}

func (s *Service) sendWelcome(ctx context.Context, u user.User) {
	body, err := notifications.WelcomeEmail(notifications.LinkData{FirstName: u.FirstName, Company: s.cfg.CompanyName})
	if err == nil {
		err = s.mailer.Send(ctx, u.Email, notifications.SubjectWelcome(s.cfg.CompanyName), body)
	}
	if err != nil {
		s.log.WarnContext(ctx, "welcome_mail.failed", "user_id", u.ID, "err", err)
	}
}

func outcome(err error) string {
	var v policy.Violations
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &v):
		return "invalid"
	case errors.Is(err, identity.ErrStorageUnavailable), errors.Is(err, identity.ErrMailDelivery):
		return "error"
	default:
		return "rejected"
	}
}
