// Package notifications delivers network change notifications to the
// configured sinks.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kr1s57/netlens/internal/adapter/controller/ws"
	"github.com/kr1s57/netlens/internal/adapter/external/smtp"
	"github.com/kr1s57/netlens/internal/entity"
)

// Sink receives notifications
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *entity.Notification) error
}

// Service handles notification fan-out
type Service struct {
	sinks  []Sink
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewService creates a new notification service with the given sinks
func NewService(logger *slog.Logger, sinks ...Sink) *Service {
	return &Service{sinks: sinks, logger: logger}
}

// AddSink registers an additional sink
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// SinkNames lists the registered sinks in registration order
func (s *Service) SinkNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sinks))
	for _, sink := range s.sinks {
		names = append(names, sink.Name())
	}
	return names
}

// Notify builds a notification and delivers it to every sink concurrently.
// Sink failures are logged and never returned.
func (s *Service) Notify(ctx context.Context, title, subtitle, body string) *entity.Notification {
	n := &entity.Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Subtitle:  subtitle,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			if err := sink.Deliver(ctx, n); err != nil {
				s.logger.Error("Failed to deliver notification", "sink", sink.Name(), "id", n.ID, "error", err)
			}
		}(sink)
	}
	wg.Wait()

	return n
}

// LogSink writes notifications to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Deliver(ctx context.Context, n *entity.Notification) error {
	l.logger.Info("Network change", "id", n.ID, "title", n.Title, "subtitle", n.Subtitle, "body", n.Body)
	return nil
}

// EmailSender is the SMTP capability used by the e-mail sink
type EmailSender interface {
	SendEmail(ctx context.Context, notif *entity.EmailNotification) error
	GetRecipients() []string
}

// EmailSink sends notifications by e-mail
type EmailSink struct {
	client EmailSender
	logger *slog.Logger
}

// NewEmailSink creates an e-mail sink
func NewEmailSink(client EmailSender, logger *slog.Logger) *EmailSink {
	return &EmailSink{client: client, logger: logger}
}

func (e *EmailSink) Name() string { return "smtp" }

func (e *EmailSink) Deliver(ctx context.Context, n *entity.Notification) error {
	subject, textBody, htmlBody := smtp.RenderNetworkChange(n)
	return e.send(ctx, subject, textBody, htmlBody, nil)
}

// SendTest sends a test e-mail to recipients, or to the configured
// recipients when none are given
func (e *EmailSink) SendTest(ctx context.Context, recipients []string) error {
	subject, textBody, htmlBody := smtp.RenderTestEmail()
	if err := e.send(ctx, subject, textBody, htmlBody, recipients); err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	e.logger.Info("Test email sent", "recipients", recipients)
	return nil
}

func (e *EmailSink) send(ctx context.Context, subject, textBody, htmlBody string, recipients []string) error {
	if len(recipients) == 0 {
		recipients = e.client.GetRecipients()
	}

	notif := &entity.EmailNotification{
		ID:         uuid.New().String(),
		Subject:    subject,
		TextBody:   textBody,
		HTMLBody:   htmlBody,
		Recipients: recipients,
		Status:     "pending",
		CreatedAt:  time.Now(),
	}

	if err := e.client.SendEmail(ctx, notif); err != nil {
		notif.Status = "failed"
		notif.Error = err.Error()
		return err
	}

	now := time.Now()
	notif.Status = "sent"
	notif.SentAt = &now
	return nil
}

// Broadcaster is the websocket hub capability used by the hub sink
type Broadcaster interface {
	BroadcastToTopic(topic, msgType string, payload interface{}) bool
}

// HubSink pushes notifications to websocket subscribers
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a websocket sink
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (h *HubSink) Name() string { return "websocket" }

func (h *HubSink) Deliver(ctx context.Context, n *entity.Notification) error {
	if !h.hub.BroadcastToTopic(ws.TopicNetwork, "network_change", n) {
		return fmt.Errorf("websocket queue full")
	}
	return nil
}
