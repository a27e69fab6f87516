package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"github.com/geocoder89/propertypro/internal/domain/user"
	"github.com/geocoder89/propertypro/internal/identity"
	"github.com/geocoder89/propertypro/internal/notifications"
	"github.com/geocoder89/propertypro/internal/policy"
	"github.com/geocoder89/propertypro/internal/security"
)

type State string

const (
	StateValidating   State = "validating"
	StateCreating     State = "creating"
	StateEmailPending State = "email_pending"
	StateConfirmed    State = "confirmed"
	StateRejected     State = "rejected"
	StateFailed       State = "failed"
	StateRolledBack   State = "rolled_back"
)

func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateRejected, StateFailed, StateRolledBack:
		return true
	default:
		return false
	}
}

type RegistrationResult struct {
	State State
	User  user.Public
}

// RegistrationSaga creates the user before mailing the confirmation link and
// deletes the row again if the mail cannot be sent.
type RegistrationSaga struct {
	ids     *identity.Service
	tokens  *security.TokenCodec
	mailer  notifications.Mailer
	cfg     Config
	log     *slog.Logger
	metrics Metrics
}

func (s *RegistrationSaga) Run(ctx context.Context, in policy.SignUpInput) (RegistrationResult, error) {
	res, err := s.run(ctx, in)
	s.metrics.AuthEvent("register", string(res.State))
	return res, err
}

func (s *RegistrationSaga) run(ctx context.Context, in policy.SignUpInput) (RegistrationResult, error) {
	res := RegistrationResult{State: StateValidating}

	form, violations := policy.ValidateSignUp(in)
	if err := violations.Err(); err != nil {
		res.State = StateRejected
		return res, err
	}

	res.State = StateCreating

	tok, err := s.tokens.Issue(security.DefaultTokenBytes)
	if err != nil {
		res.State = StateFailed
		return res, oops.In("account").With("step", "issue confirmation token").Wrap(err)
	}

	created, err := s.ids.Create(ctx, identity.Candidate{
		Email:       form.Email,
		Password:    form.Password,
		FirstName:   form.FirstName,
		LastName:    form.LastName,
		PhoneNumber: form.PhoneNumber,
		Address:     form.Address,
		Role:        form.Role,
		TokenHash:   tok.Hash,
	})
	if err != nil {
		res.State = StateFailed
		return res, err
	}

	res.State = StateEmailPending
	res.User = created.Public()

	sendErr := s.sendConfirmation(ctx, created, tok.Plaintext)
	if sendErr == nil {
		res.State = StateConfirmed
		s.log.InfoContext(ctx, "registration.confirmed", "user_id", created.ID, "role", created.Role)
		return res, nil
	}

	s.log.WarnContext(ctx, "registration.mail_failed", "user_id", created.ID, "err", sendErr)

	// Compensation must run even when the request context is already gone.
	if err := s.compensate(ctx, created.ID); err != nil {
		s.log.ErrorContext(ctx, "registration.compensation_failed", "user_id", created.ID, "err", err)
		res.State = StateFailed
		return RegistrationResult{State: res.State}, errors.Join(mailFailure(sendErr), err)
	}

	return RegistrationResult{State: StateRolledBack}, mailFailure(sendErr)
}

func (s *RegistrationSaga) sendConfirmation(ctx context.Context, u user.User, plaintext string) error {
	body, err := notifications.ConfirmationEmail(notifications.LinkData{
		FirstName: u.FirstName,
		Company:   s.cfg.CompanyName,
		Link:      confirmationLink(s.cfg.BaseURL, plaintext),
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, u.Email, notifications.SubjectConfirmation, body)
}

func (s *RegistrationSaga) compensate(ctx context.Context, id string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()

	return s.ids.Delete(cctx, id)
}

func mailFailure(err error) error {
	return fmt.Errorf("%w: %w", identity.ErrMailDelivery, err)
}
