package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"PostOpTriage/pkg/errors"
)

const DefaultMailTimeout = 10 * time.Second

type MailConfig struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int64         `env:"SMTP_PORT"`
	Username string        `env:"SMTP_USER"`
	Password string        `env:"SMTP_PASS"`
	From     string        `env:"EMAIL_FROM"`
	Timeout  time.Duration `env:"MAIL_TIMEOUT"`
}

// Mailer delivers HTML mail over SMTP, upgrading with STARTTLS when offered.
type Mailer struct {
	cfg  MailConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewMailNotification(cfg MailConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMailTimeout
	}
	d := &net.Dialer{}
	return &Mailer{cfg: cfg, dial: d.DialContext}
}

func (m *Mailer) Configured() bool { return m.cfg.Host != "" }

// Send delivers one message. The whole SMTP conversation is bounded by the
// configured timeout.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		return errors.Wrap(errors.ErrChannelNotConfigured, "mailer not initialized")
	}
	if to == "" {
		return errors.WithCode(errors.CodeInvalidInput, "mail: recipient is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Host, strconv.FormatInt(m.cfg.Port, 10))
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return deliveryErr(err, "dial "+addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock the conversation if ctx is cancelled before the deadline
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return deliveryErr(err, "smtp handshake")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return deliveryErr(err, "starttls")
		}
	}
	if m.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return deliveryErr(err, "smtp auth")
			}
		}
	}

	if err := c.Mail(m.sender()); err != nil {
		return deliveryErr(err, "MAIL FROM")
	}
	if err := c.Rcpt(to); err != nil {
		return deliveryErr(err, "RCPT TO")
	}
	w, err := c.Data()
	if err != nil {
		return deliveryErr(err, "DATA")
	}
	if _, err := w.Write(buildMessage(m.cfg.From, to, subject, htmlBody, time.Now())); err != nil {
		return deliveryErr(err, "write body")
	}
	if err := w.Close(); err != nil {
		return deliveryErr(err, "end DATA")
	}
	return c.Quit()
}

func (m *Mailer) sender() string {
	if a, err := mailAddress(m.cfg.From); err == nil {
		return a
	}
	return m.cfg.Username
}

func mailAddress(from string) (string, error) {
	from = strings.TrimSpace(from)
	if i := strings.LastIndex(from, "<"); i >= 0 && strings.HasSuffix(from, ">") {
		from = from[i+1 : len(from)-1]
	}
	if !strings.Contains(from, "@") {
		return "", fmt.Errorf("invalid sender %q", from)
	}
	return from, nil
}

func deliveryErr(err error, op string) error {
	e := errors.Wrap(err, "smtp "+op)
	e.Code = errors.CodeDeliveryFailed
	return e
}

// buildMessage renders a UTF-8 HTML message; subjects are RFC 2047 encoded
// so Vietnamese diacritics survive transit.
func buildMessage(from, to, subject, htmlBody string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(htmlBody))
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.Bytes()
}
