package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/screencheck/internal/config"
)

// SMTPNotifier sends status messages through a mail relay.
type SMTPNotifier struct {
	cfg config.SMTPConfig
	now func() time.Time
}

// NewSMTPNotifier creates a notifier for the given relay.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, now: time.Now}
}

// Notify implements Notifier. The whole exchange is bounded by ctx.
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("%w: no recipient", ErrDelivery)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrDelivery, addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrDelivery, err)
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrDelivery, err)
		}
	}

	if err := c.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("%w: mail from: %v", ErrDelivery, err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("%w: rcpt to: %v", ErrDelivery, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: data: %v", ErrDelivery, err)
	}
	if _, err := w.Write(buildMessage(n.cfg.From, recipient, subject, body, n.now())); err != nil {
		return fmt.Errorf("%w: write: %v", ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: data: %v", ErrDelivery, err)
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %v", ErrDelivery, err)
	}
	return nil
}

// buildMessage renders a plain-text RFC 5322 message with CRLF line endings.
func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
