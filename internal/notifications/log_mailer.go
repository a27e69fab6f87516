package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	SentAt  time.Time
}

// LogMailer logs instead of delivering. It keeps every message so dev
// setups and tests can read the token links back.
type LogMailer struct {
	log *slog.Logger

	mu    sync.Mutex
	sent  []Message
	delay time.Duration
	fail  bool
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

// Simulate makes later sends slow and/or failing, like a degraded provider.
func (m *LogMailer) Simulate(delay time.Duration, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
	m.fail = fail
}

func (m *LogMailer) Send(ctx context.Context, address, subject, htmlBody string) error {
	if address == "" {
		return ErrEmptyRecipient
	}

	m.mu.Lock()
	delay, fail := m.delay, m.fail
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if fail {
		return fmt.Errorf("provider down (simulated)")
	}

	m.mu.Lock()
	m.sent = append(m.sent, Message{To: address, Subject: subject, HTML: htmlBody, SentAt: time.Now().UTC()})
	m.mu.Unlock()

	m.log.InfoContext(ctx, "mail.sent", "to", address, "subject", subject)
	return nil
}

func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent message sent to address.
func (m *LogMailer) Last(address string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == address {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
