package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/ports"
)

// SMTPConfig holds SMTP server configuration for the mail engine.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // envelope and header sender address

	UseTLS      bool // STARTTLS when the server offers it
	UseImplicit bool // implicit TLS (port 465)
	SkipVerify  bool // tests only

	Timeout time.Duration
}

// SMTP delivers mail requests through an SMTP relay.
type SMTP struct {
	config SMTPConfig
}

// NewSMTP creates the mail engine.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("engine mail: smtp host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{config: cfg}, nil
}

// Invoke sends the message. Only mail requests are accepted.
func (s *SMTP) Invoke(ctx context.Context, req engine.Request) (ports.EngineResult, error) {
	mail, ok := req.(*engine.MailRequest)
	if !ok {
		return ports.EngineResult{}, fmt.Errorf("smtp engine cannot serve %s requests", req.Kind())
	}

	msg := buildMessage(s.config.From, mail, time.Now())
	if err := s.send(ctx, mail.To, msg); err != nil {
		return ports.EngineResult{}, err
	}
	return ports.EngineResult{
		Status: 200,
		Data: map[string]any{
			"to":     mail.To,
			"queued": true,
		},
	}, nil
}

func (s *SMTP) send(ctx context.Context, to string, message []byte) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	tlsConfig := &tls.Config{
		ServerName:         s.config.Host,
		InsecureSkipVerify: s.config.SkipVerify,
	}

	var conn net.Conn
	var err error
	if s.config.UseImplicit {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: s.config.Timeout}, Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{Timeout: s.config.Timeout}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.config.UseTLS && !s.config.UseImplicit {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// buildMessage renders an HTML message with encoded headers.
func buildMessage(from string, m *engine.MailRequest, at time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", m.FromName), from)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", at.UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(m.HTML, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Ensure interface compliance.
var _ ports.Engine = (*SMTP)(nil)
