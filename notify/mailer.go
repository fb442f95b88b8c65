package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/pevans/propwatch/config"
	"github.com/pevans/propwatch/listing"
	"github.com/pevans/propwatch/logger"
)

// ErrNoRecipients is returned when the settings name no recipient.
var ErrNoRecipients = errors.New("no mail recipients configured")

// sender delivers messages. *mail.Client implements it.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends digests over SMTP with implicit TLS.
type Mailer struct {
	from   string
	to     []string
	client sender
	log    logger.Logger
}

// NewMailer creates a mailer for the given settings. The sender address is
// also the SMTP login.
func NewMailer(settings config.Settings, password string, log logger.Logger) (*Mailer, error) {
	if len(settings.MailTo) == 0 {
		return nil, ErrNoRecipients
	}

	client, err := mail.NewClient(settings.SMTPServer,
		mail.WithPort(settings.SMTPPort),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(settings.MailFrom),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return newMailer(settings, client, log), nil
}

func newMailer(settings config.Settings, client sender, log logger.Logger) *Mailer {
	return &Mailer{
		from:   settings.MailFrom,
		to:     settings.MailTo,
		client: client,
		log:    log,
	}
}

// Notify renders listings and mails them to every recipient in one message.
func (m *Mailer) Notify(ctx context.Context, listings []listing.Listing) error {
	body, err := RenderDigest(listings)
	if err != nil {
		return err
	}

	msg, err := m.message(body)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.log.Info("Sent digest",
		logger.Int("listings", len(listings)),
		logger.Strings("to", m.to),
	)
	return nil
}

func (m *Mailer) message(body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}
