package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/wneessen/go-mail"
)

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends messages through an authenticated SMTP relay.
// The username doubles as the sender address.
type SMTPMailer struct {
	mu     sync.Mutex
	client *mail.Client
	from   string
}

// NewSMTPMailer creates the SMTP client; no connection is made until Send
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.Username}, nil
}

// Verify dials the relay once to check host and credentials.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("error connecting to smtp relay: %w", err)
	}
	return m.client.Close()
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := mail.NewMsg()
	if err := out.FromFormat(msg.FromName, m.from); err != nil {
		return fmt.Errorf("error setting sender: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("error setting recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("error sending mail to %s: %w", msg.To, err)
	}
	return nil
}
