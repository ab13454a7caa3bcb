package smtp

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
)

var networkChangeTemplate = template.Must(template.New("network_change").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>netlens - {{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%); color: white; padding: 24px;">
    <h1 style="margin: 0; font-size: 22px;">{{.Title}}</h1>
    {{if .Subtitle}}<p style="margin: 6px 0 0 0; opacity: 0.85;">{{.Subtitle}}</p>{{end}}
  </div>

  <div style="padding: 24px; background: #f9fafb;">
    <div style="background: white; border-radius: 8px; padding: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.05);">
      {{range .Lines}}<div style="padding: 4px 0; border-bottom: 1px solid #f3f4f6;">{{.}}</div>
      {{end}}
    </div>
  </div>

  <div style="padding: 16px; text-align: center; color: #9ca3af; font-size: 12px;">
    Sent at {{.SentAt}} by netlens
  </div>
</body>
</html>`))

// RenderNetworkChange renders a network change notification email
func RenderNetworkChange(n *entity.Notification) (subject, textBody, htmlBody string) {
	subject = fmt.Sprintf("[netlens] %s", n.Title)
	if n.Subtitle != "" {
		subject = fmt.Sprintf("%s - %s", subject, n.Subtitle)
	}

	sentAt := n.CreatedAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	textBody = fmt.Sprintf("%s\n%s\n\n%s\n\nSent at: %s\n",
		n.Title, n.Subtitle, n.Body, sentAt.Format("2006-01-02 15:04:05"))

	var buf bytes.Buffer
	if err := networkChangeTemplate.Execute(&buf, map[string]interface{}{
		"Title":    n.Title,
		"Subtitle": n.Subtitle,
		"Lines":    strings.Split(n.Body, "\n"),
		"SentAt":   sentAt.Format("2006-01-02 15:04:05"),
	}); err == nil {
		htmlBody = buf.String()
	}
	return
}

// RenderTestEmail renders a test email
func RenderTestEmail() (subject, textBody, htmlBody string) {
	return RenderNetworkChange(&entity.Notification{
		Title:     "Test Email",
		Subtitle:  "Configuration Successful",
		Body:      "This is a test email to verify your SMTP configuration.\nIf you received this email, your settings are correctly configured.",
		CreatedAt: time.Now(),
	})
}

// encodeHeader applies RFC 2047 encoding to non-ASCII header values
func encodeHeader(value string) string {
	return mime.QEncoding.Encode("UTF-8", value)
}
