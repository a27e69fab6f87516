package notifications

import (
	"context"
	"errors"
)

// ResultRecorder is satisfied by *observability.Prom.
type ResultRecorder interface {
	MailResult(result string)
}

type MeteredMailer struct {
	inner Mailer
	rec   ResultRecorder
}

func NewMeteredMailer(inner Mailer, rec ResultRecorder) *MeteredMailer {
	return &MeteredMailer{inner: inner, rec: rec}
}

func (m *MeteredMailer) Send(ctx context.Context, address, subject, htmlBody string) error {
	err := m.inner.Send(ctx, address, subject, htmlBody)

	switch {
	case err == nil:
		m.rec.MailResult("sent")
	case errors.Is(err, ErrCircuitOpen):
		m.rec.MailResult("circuit_open")
	default:
		m.rec.MailResult("failed")
	}
	return err
}
