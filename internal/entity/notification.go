package entity

import "time"

// Notification is a change notification handed to the notification sinks
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Subtitle  string    `json:"subtitle" yaml:"subtitle"`
	Body      string    `json:"body" yaml:"body"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// EmailNotification represents a single e-mail to send
type EmailNotification struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	TextBody   string     `json:"text_body"`
	HTMLBody   string     `json:"html_body"`
	Recipients []string   `json:"recipients"`
	Status     string     `json:"status"` // pending, sent, failed
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
