package handlers

import (
	"context"
	"net/http"
	"strings"
)

// EmailTester sends a test e-mail through the configured SMTP sink
type EmailTester interface {
	SendTest(ctx context.Context, recipients []string) error
}

// SinkLister reports the active notification sinks
type SinkLister interface {
	SinkNames() []string
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	sinks SinkLister
	email EmailTester
}

// NewNotificationHandler creates a new notification handler. email is nil
// when SMTP is not configured.
func NewNotificationHandler(sinks SinkLister, email EmailTester) *NotificationHandler {
	return &NotificationHandler{
		sinks: sinks,
		email: email,
	}
}

// SendTestEmailRequest represents a test email request
type SendTestEmailRequest struct {
	Recipients []string `json:"recipients"`
}

// SendTestEmail sends a test email
// POST /api/v1/notifications/test-email
func (h *NotificationHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	if h.email == nil {
		ErrorResponse(w, http.StatusServiceUnavailable, "SMTP not configured", nil)
		return
	}

	var req SendTestEmailRequest
	if err := DecodeJSON(r, &req); err != nil {
		// no body means the configured recipients
		req.Recipients = nil
	}

	// Parse recipients from comma-separated string if needed
	if len(req.Recipients) == 1 && strings.Contains(req.Recipients[0], ",") {
		parts := strings.Split(req.Recipients[0], ",")
		req.Recipients = make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				req.Recipients = append(req.Recipients, trimmed)
			}
		}
	}

	if err := h.email.SendTest(r.Context(), req.Recipients); err != nil {
		ErrorResponse(w, http.StatusInternalServerError, "Failed to send test email", err)
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test email sent successfully",
	})
}

// GetStatus returns the active sinks
// GET /api/v1/notifications/status
func (h *NotificationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"sinks":           h.sinks.SinkNames(),
		"smtp_configured": h.email != nil,
	})
}
