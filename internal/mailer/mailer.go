// Package mailer sends outbound email through AWS SES, or only logs it when
// email delivery is disabled.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	"github.com/JonMunkholm/salesops/internal/logging"
)

// ErrNoRecipients is returned when a message has no valid To address.
var ErrNoRecipients = errors.New("send email: no recipients")

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Validate normalizes recipients and checks the message has content.
func (m *Message) Validate() error {
	var to []string
	for _, addr := range m.To {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("send email: invalid recipient %q: %w", addr, err)
		}
		to = append(to, addr)
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("send email: empty subject")
	}
	if m.HTML == "" && m.Text == "" {
		return errors.New("send email: empty body")
	}
	m.To = to
	return nil
}

// sesAPI is the subset of the SES v2 client used by SESSender.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends email through AWS SES v2.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender creates a sender from an AWS config.
func NewSESSender(cfg aws.Config, fromAddress, fromName string) *SESSender {
	return &SESSender{
		client: sesv2.NewFromConfig(cfg),
		from:   formatFrom(fromAddress, fromName),
	}
}

func formatFrom(address, name string) string {
	if name == "" {
		return address
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

// Send delivers msg as a single SES message with HTML and text parts.
func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	for name, value := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}

	id := aws.ToString(out.MessageId)
	logging.FromContext(ctx).Info("email sent", "recipients", len(msg.To), "message_id", id)
	return id, nil
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs msg and returns a generated id.
func (l LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	id := "log-" + uuid.NewString()
	logger.Info("email delivery disabled, message logged",
		"message_id", id,
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
		"text_bytes", len(msg.Text),
	)
	return id, nil
}
