package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	To       []string
	// TLS is one of mandatory, opportunistic or none.
	TLS     string
	SSL     bool
	Timeout time.Duration
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends the run summary as a plain-text mail.
type EmailNotifier struct {
	opts   EmailOptions
	sender mailSender
	logger zerolog.Logger
}

// NewEmailNotifier builds the SMTP client once; connections are opened per send.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if opts.From == "" {
		return nil, errors.New("sender address is required")
	}
	if len(opts.To) == 0 {
		opts.To = []string{opts.From}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	clientOpts := []mail.Option{
		mail.WithTimeout(opts.Timeout),
		mail.WithTLSPolicy(tlsPolicy(opts.TLS)),
	}
	if opts.Port > 0 {
		clientOpts = append(clientOpts, mail.WithPort(opts.Port))
	}
	if opts.SSL {
		clientOpts = append(clientOpts, mail.WithSSL())
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return newEmailNotifier(opts, client, logger), nil
}

func newEmailNotifier(opts EmailOptions, sender mailSender, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		opts:   opts,
		sender: sender,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
}

// Notify renders and sends one message.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	msg, err := n.buildMessage(note)
	if err != nil {
		return &SendError{Channel: "email", Err: err}
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return &SendError{Channel: "email", Err: err}
	}
	n.logger.Info().Str("run_id", note.RunID).Strs("to", n.opts.To).Msg("notification sent (email)")
	return nil
}

func (n *EmailNotifier) buildMessage(note Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()

	name := n.opts.FromName
	if name == "" {
		name = note.Title
	}
	if err := msg.FromFormat(name, n.opts.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(n.opts.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(renderSubject(note))
	msg.SetBodyString(mail.TypeTextPlain, renderBody(note))
	return msg, nil
}

func tlsPolicy(v string) mail.TLSPolicy {
	switch v {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

var _ Notifier = (*EmailNotifier)(nil)
