// Package netwatch polls the network path in the background and runs an
// event-mode report on every tick, leaving the change gate to decide
// whether anyone is notified.
package netwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
)

// Runner executes one event-mode run
type Runner interface {
	RunWithWatchdog(ctx context.Context) entity.RunResult
}

// Config holds the watcher configuration
type Config struct {
	// PollInterval is how often the path is checked
	PollInterval time.Duration
	// Cooldown is the minimum time between two notified changes
	Cooldown time.Duration
}

// DefaultConfig returns the stock polling cadence
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Minute,
		Cooldown:     30 * time.Second,
	}
}

// Service runs the poll loop
type Service struct {
	config Config
	runner Runner
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	lastCheck time.Time
	lastFired time.Time
	checks    int64
	changes   int64
	failures  int64
	lastKind  entity.ResultKind
}

// NewService creates a new network watcher
func NewService(config Config, runner Runner, logger *slog.Logger) *Service {
	if config.PollInterval <= 0 {
		config = DefaultConfig()
	}

	return &Service{
		config: config,
		runner: runner,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start blocks running the poll loop until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting network watcher",
		"poll_interval", s.config.PollInterval,
		"cooldown", s.config.Cooldown)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setStopped()
			s.logger.Info("Network watcher stopped (context cancelled)")
			return
		case <-s.stopCh:
			s.logger.Info("Network watcher stopped")
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Stop ends the poll loop
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

func (s *Service) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Check runs one event-mode report unless a change fired within the cooldown
func (s *Service) Check(ctx context.Context) entity.ResultKind {
	s.mu.Lock()
	lastFired := s.lastFired
	s.lastCheck = time.Now()
	s.checks++
	s.mu.Unlock()

	if !lastFired.IsZero() && time.Since(lastFired) < s.config.Cooldown {
		s.logger.Debug("Network watcher: still in cooldown",
			"remaining", s.config.Cooldown-time.Since(lastFired))
		return ""
	}

	result := s.runner.RunWithWatchdog(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKind = result.Kind

	switch result.Kind {
	case entity.ResultSilent:
		s.logger.Debug("Network watcher: path unchanged")
	case entity.ResultNotified:
		s.changes++
		s.lastFired = time.Now()
		s.logger.Info("Network change detected", "title", result.Notification.Title)
	default:
		s.failures++
		s.lastFired = time.Now()
		s.logger.Warn("Network watcher run failed", "kind", result.Kind)
	}

	return result.Kind
}

// Stats returns watcher statistics
type Stats struct {
	Running      bool              `json:"running"`
	LastCheck    time.Time         `json:"last_check"`
	LastChange   time.Time         `json:"last_change"`
	LastResult   entity.ResultKind `json:"last_result"`
	Checks       int64             `json:"checks"`
	Changes      int64             `json:"changes"`
	Failures     int64             `json:"failures"`
	PollInterval time.Duration     `json:"poll_interval"`
	Cooldown     time.Duration     `json:"cooldown"`
}

// GetStats returns current watcher statistics
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Running:      s.running,
		LastCheck:    s.lastCheck,
		LastChange:   s.lastFired,
		LastResult:   s.lastKind,
		Checks:       s.checks,
		Changes:      s.changes,
		Failures:     s.failures,
		PollInterval: s.config.PollInterval,
		Cooldown:     s.config.Cooldown,
	}
}

// IsRunning returns whether the poll loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
