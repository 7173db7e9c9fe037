package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/wneessen/go-mail"

	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// ErrNotConfigured is returned by Send when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp gateway is not configured")

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Gateway delivers notifications through an SMTP relay.
type Gateway struct {
	client sender
	from   string
	logger *slog.Logger
}

// New builds an SMTP gateway. An empty host yields a gateway that refuses to send.
func New(cfg config.SMTP, logger *slog.Logger) (*Gateway, error) {
	if cfg.Host == "" {
		logger.Warn("smtp host is empty, invoice emails are disabled")
		return &Gateway{from: cfg.From, logger: logger}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Gateway{client: client, from: cfg.From, logger: logger}, nil
}

// Send delivers the notification with its attachment. Delivery is bounded by ctx.
func (g *Gateway) Send(ctx context.Context, n model.Notification) error {
	if g.client == nil {
		return ErrNotConfigured
	}

	msg, err := g.message(n)
	if err != nil {
		return err
	}

	if err := g.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", n.To, err)
	}
	g.logger.Info("invoice email sent", slog.String("to", n.To), slog.String("subject", n.Subject))
	return nil
}

func (g *Gateway) message(n model.Notification) (*mail.Msg, error) {
	if n.To == "" {
		return nil, fmt.Errorf("notification has no recipient")
	}

	msg := mail.NewMsg()
	if err := msg.From(g.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", g.from, err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", n.To, err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextHTML, n.HTMLBody)

	if n.AttachmentPath != "" {
		if _, err := os.Stat(n.AttachmentPath); err != nil {
			return nil, fmt.Errorf("attachment: %w", err)
		}
		msg.AttachFile(n.AttachmentPath)
	}
	return msg, nil
}
