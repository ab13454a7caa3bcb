package smtp

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
	"github.com/stretchr/testify/assert"
)

func newTestClient(cfg Config) *Client {
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewClient_Defaults(t *testing.T) {
	c := newTestClient(Config{Host: "mail.example.com"})
	assert.Equal(t, 587, c.config.Port)
	assert.Equal(t, "tls", c.config.Security)
	assert.Equal(t, 30*time.Second, c.config.Timeout)
	assert.False(t, c.IsConfigured())

	c = newTestClient(Config{Host: "mail.example.com", Recipients: []string{"ops@example.com"}})
	assert.True(t, c.IsConfigured())
}

func TestSendEmail_NotConfigured(t *testing.T) {
	err := newTestClient(Config{}).SendEmail(context.Background(), &entity.EmailNotification{Subject: "x"})
	assert.ErrorContains(t, err, "not configured")

	err = newTestClient(Config{Host: "mail.example.com"}).SendEmail(context.Background(), &entity.EmailNotification{Subject: "x"})
	assert.ErrorContains(t, err, "no recipients")
}

func TestBuildMessage(t *testing.T) {
	c := newTestClient(Config{FromEmail: "netlens@example.com"})

	plain := string(c.buildMessage("網路變更", "body", "", []string{"a@example.com", "b@example.com"}))
	assert.Contains(t, plain, "From: netlens <netlens@example.com>\r\n")
	assert.Contains(t, plain, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, plain, "Subject: =?UTF-8?q?")
	assert.NotContains(t, plain, "multipart")

	multi := string(c.buildMessage("subject", "text", "<p>html</p>", []string{"a@example.com"}))
	assert.Contains(t, multi, "multipart/alternative")
	assert.Equal(t, 3, strings.Count(multi, "--==NETLENS_BOUNDARY=="))
	assert.Contains(t, multi, "<p>html</p>")
}

func TestRenderNetworkChange(t *testing.T) {
	n := &entity.Notification{
		Title:     "Proxy-JP",
		Subtitle:  "純淨 IP",
		Body:      "inbound 1.1.1.1\noutbound <2.2.2.2>",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	subject, text, html := RenderNetworkChange(n)
	assert.Equal(t, "[netlens] Proxy-JP - 純淨 IP", subject)
	assert.Contains(t, text, "inbound 1.1.1.1")
	assert.Contains(t, text, "2024-05-01 10:00:00")
	assert.Contains(t, html, "outbound &lt;2.2.2.2&gt;")
}
