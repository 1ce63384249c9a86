package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mailersend/mailersend-go"

	"github.com/BradenHooton/carepoint/internal/config"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// NewMailer builds the mailer selected by MAIL_PROVIDER.
func NewMailer(ctx context.Context, cfg *config.MailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESMailer(ctx, cfg.AWSRegion, cfg.FromAddress, cfg.FromName, logger)
	case "mailersend":
		return NewMailerSendMailer(cfg.MailerSendAPIKey, cfg.FromAddress, cfg.FromName)
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromAddress, cfg.FromName, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS), nil
	case "", "log":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// SESClient is the subset of the SES API the mailer calls.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client SESClient
	source string
	logger *slog.Logger
}

func NewSESMailer(ctx context.Context, region, fromAddress, fromName string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESMailerWithClient(ses.NewFromConfig(cfg), fromAddress, fromName, logger), nil
}

func NewSESMailerWithClient(client SESClient, fromAddress, fromName string, logger *slog.Logger) *SESMailer {
	return &SESMailer{client: client, source: formatAddress(fromName, fromAddress), logger: logger}
}

func (m *SESMailer) Send(ctx context.Context, email Email) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.source),
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(email.Text), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	m.logger.Debug("email accepted by SES",
		slog.String("to", pkglogger.SanitizedEmail(email.To)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// MailerSendMailer sends through the MailerSend API.
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendMailer(apiKey, fromAddress, fromName string) (*MailerSendMailer, error) {
	if apiKey == "" || fromAddress == "" {
		return nil, fmt.Errorf("MailerSend requires MAILERSEND_API_KEY and MAIL_FROM")
	}
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromAddress},
	}, nil
}

func (m *MailerSendMailer) Send(ctx context.Context, email Email) error {
	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: email.To}})
	msg.SetSubject(email.Subject)
	if strings.TrimSpace(email.Text) != "" {
		msg.SetText(email.Text)
	}
	if strings.TrimSpace(email.HTML) != "" {
		msg.SetHTML(email.HTML)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("mailersend send: %w", err)
	}
	if res != nil && res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mailersend send: unexpected status %d", res.StatusCode)
	}
	return nil
}

// SMTPMailer sends multipart/alternative mail over SMTP. Without TLS or
// credentials it talks plain SMTP, which suits a local Mailpit.
type SMTPMailer struct {
	host   string
	port   int
	from   string
	header string
	user   string
	pass   string
	useTLS bool
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, fromAddress, fromName, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		host:   strings.TrimSpace(host),
		port:   port,
		from:   strings.TrimSpace(fromAddress),
		header: formatAddress(fromName, strings.TrimSpace(fromAddress)),
		user:   strings.TrimSpace(user),
		pass:   pass,
		useTLS: useTLS,
		send:   smtp.SendMail,
	}
}

const mimeBoundary = "carepoint-alternative"

func buildMIMEMessage(fromHeader string, email Email) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", fromHeader)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", email.Text)

	fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", email.HTML)

	fmt.Fprintf(&buf, "--%s--\r\n", mimeBoundary)
	return buf.Bytes()
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	to := strings.TrimSpace(email.To)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := buildMIMEMessage(m.header, email)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	if !m.useTLS {
		return m.send(addr, auth, m.from, []string{to}, body)
	}
	return m.sendImplicitTLS(addr, auth, to, body)
}

// sendImplicitTLS is used for port-465 style servers.
func (m *SMTPMailer) sendImplicitTLS(addr string, auth smtp.Auth, to string, body []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	return w.Close()
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, email Email) error {
	m.logger.InfoContext(ctx, "email (log provider)",
		slog.String("to", pkglogger.SanitizedEmail(email.To)),
		slog.String("subject", email.Subject),
		slog.Int("text_bytes", len(email.Text)),
	)
	return nil
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), address)
}
