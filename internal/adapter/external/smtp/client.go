package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
)

// Client handles SMTP email sending
type Client struct {
	config *Config
	logger *slog.Logger
}

// Config holds SMTP client configuration
type Config struct {
	Host       string
	Port       int
	Security   string // tls, ssl, none
	FromEmail  string
	Username   string
	Password   string
	Recipients []string
	Timeout    time.Duration
}

// NewClient creates a new SMTP client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Security == "" {
		cfg.Security = "tls"
	}
	return &Client{
		config: &cfg,
		logger: logger,
	}
}

// TestConnection dials, negotiates TLS and authenticates without sending
func (c *Client) TestConnection(ctx context.Context) error {
	if c.config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if c.config.Username == "" {
		return fmt.Errorf("SMTP username not configured")
	}

	c.logger.Info("Testing SMTP connection", "host", c.config.Host, "port", c.config.Port, "security", c.security())

	client, closeFn, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	c.logger.Info("SMTP connection test successful", "host", c.config.Host, "port", c.config.Port)
	return client.Quit()
}

// SendEmail sends an email notification
func (c *Client) SendEmail(ctx context.Context, notif *entity.EmailNotification) error {
	if c.config.Host == "" {
		return fmt.Errorf("SMTP not configured")
	}

	recipients := notif.Recipients
	if len(recipients) == 0 {
		recipients = c.config.Recipients
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := c.buildMessage(notif.Subject, notif.TextBody, notif.HTMLBody, recipients)

	client, closeFn, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := client.Mail(c.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	c.logger.Info("Email sent successfully",
		"subject", notif.Subject,
		"recipients", len(recipients),
	)

	return client.Quit()
}

func (c *Client) security() string {
	return strings.ToLower(c.config.Security)
}

// session opens an authenticated SMTP session. The returned func closes
// both the client and the underlying connection.
func (c *Client) session(ctx context.Context) (*smtp.Client, func(), error) {
	addr := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	security := c.security()
	dialer := net.Dialer{Timeout: c.config.Timeout}

	var (
		conn net.Conn
		err  error
	)
	switch security {
	case "ssl", "implicit":
		// Direct TLS connection (port 465)
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, &tls.Config{ServerName: c.config.Host})
	default:
		// plain, or STARTTLS upgraded below (port 587)
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, c.config.Host)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	closeFn := func() {
		client.Close()
		conn.Close()
	}

	if security == "tls" || security == "starttls" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.config.Host}); err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		} else if security == "starttls" {
			closeFn()
			return nil, nil, fmt.Errorf("server does not support STARTTLS")
		}
	}

	if c.config.Username != "" {
		if err := c.authenticate(client); err != nil {
			closeFn()
			return nil, nil, err
		}
	}

	return client, closeFn, nil
}

// authenticate tries LOGIN first (Office365 requires it), then PLAIN
func (c *Client) authenticate(client *smtp.Client) error {
	ok, authMethods := client.Extension("AUTH")
	if !ok {
		return fmt.Errorf("no supported authentication method")
	}
	c.logger.Debug("Server auth methods", "methods", authMethods)

	var candidates []smtp.Auth
	if strings.Contains(authMethods, "LOGIN") {
		candidates = append(candidates, LoginAuth(c.config.Username, c.config.Password))
	}
	if strings.Contains(authMethods, "PLAIN") {
		candidates = append(candidates, smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host))
	}

	var authErr error
	for _, auth := range candidates {
		if err := client.Auth(auth); err != nil {
			c.logger.Debug("SMTP auth failed", "error", err)
			authErr = err
			continue
		}
		return nil
	}

	if authErr != nil {
		return fmt.Errorf("authentication failed: %w", authErr)
	}
	return fmt.Errorf("no supported authentication method")
}

// buildMessage builds a MIME email message
func (c *Client) buildMessage(subject, textBody, htmlBody string, recipients []string) []byte {
	const boundary = "==NETLENS_BOUNDARY=="

	var msg strings.Builder

	fmt.Fprintf(&msg, "From: netlens <%s>\r\n", c.config.FromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", encodeHeader(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if htmlBody == "" {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		msg.WriteString(textBody)
		return []byte(msg.String())
	}

	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
	for _, part := range []struct{ contentType, body string }{
		{"text/plain", textBody},
		{"text/html", htmlBody},
	} {
		fmt.Fprintf(&msg, "--%s\r\n", boundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", part.contentType)
		msg.WriteString(part.body)
		msg.WriteString("\r\n")
	}
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return []byte(msg.String())
}

// IsConfigured returns true if SMTP is configured
func (c *Client) IsConfigured() bool {
	return c.config != nil && c.config.Host != "" && len(c.config.Recipients) > 0
}

// GetRecipients returns the default recipients
func (c *Client) GetRecipients() []string {
	if c.config == nil {
		return nil
	}
	return c.config.Recipients
}

// LoginAuth implements the LOGIN authentication mechanism
type loginAuth struct {
	username, password string
}

// LoginAuth returns an Auth that implements the LOGIN authentication
func LoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return nil, fmt.Errorf("unknown server challenge: %s", fromServer)
		}
	}
	return nil, nil
}
