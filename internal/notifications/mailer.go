package notifications

import (
	"context"
	"errors"
)

var ErrEmptyRecipient = errors.New("recipient address is empty")

// Mailer delivers a single HTML message. Implementations must honour ctx
// cancellation.
type Mailer interface {
	Send(ctx context.Context, address, subject, htmlBody string) error
}

type MailerFunc func(ctx context.Context, address, subject, htmlBody string) error

func (f MailerFunc) Send(ctx context.Context, address, subject, htmlBody string) error {
	return f(ctx, address, subject, htmlBody)
}
