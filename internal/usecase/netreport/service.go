// Package netreport runs one report cycle: it acquires the path's
// addresses, enriches them with policy, risk, IP type and geo data, and
// turns the result into a panel payload or a change notification.
package netreport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kr1s57/netlens/internal/domain/scoring"
	"github.com/kr1s57/netlens/internal/entity"
	"github.com/kr1s57/netlens/internal/usecase/acquisition"
	"github.com/kr1s57/netlens/internal/usecase/geoenrich"
)

// Acquirer resolves the inbound and outbound addresses
type Acquirer interface {
	Acquire(ctx context.Context) (entity.Addresses, error)
}

// ChangeDetector gates event-mode runs on an address change
type ChangeDetector interface {
	HasChanged(ctx context.Context, addrs entity.Addresses) bool
}

// PolicyDiscoverer names the routing policy of the probes
type PolicyDiscoverer interface {
	Discover(ctx context.Context) entity.PolicyAssignment
}

// RiskResolver scores an egress address
type RiskResolver interface {
	Resolve(ctx context.Context, address string) entity.RiskAssessment
}

// IPTypeResolver classifies the egress address
type IPTypeResolver interface {
	Resolve(ctx context.Context) entity.IPTypeAssessment
}

// GeoEnricher produces the reconciled geo record of one address
type GeoEnricher interface {
	Enrich(ctx context.Context, lang entity.GeoLanguage, role geoenrich.Role, ip string) entity.GeoRecord
}

// Notifier fans a notification out to the configured sinks
type Notifier interface {
	Notify(ctx context.Context, title, subtitle, body string) *entity.Notification
}

// Config is the immutable per-invocation configuration
type Config struct {
	Mode          entity.TriggerMode
	Language      entity.GeoLanguage
	EventDelay    time.Duration
	Timeout       time.Duration
	FlagOverrides map[string]string
	// Tiers overrides the risk buckets; empty uses the stock table
	Tiers []scoring.RiskTier
}

// Components are the collaborators of a run
type Components struct {
	Acquirer Acquirer
	Detector ChangeDetector
	Policy   PolicyDiscoverer
	Risk     RiskResolver
	IPType   IPTypeResolver
	Geo      GeoEnricher
	Notifier Notifier
}

// Service orchestrates a report run
type Service struct {
	cfg      Config
	c        Components
	renderer *Renderer
	logger   *slog.Logger
}

// NewService creates a new report service
func NewService(cfg Config, c Components, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 28 * time.Second
	}
	return &Service{
		cfg:      cfg,
		c:        c,
		renderer: NewRenderer(cfg.Language, scoring.NewTierTable(cfg.Tiers), scoring.NewFlagMapper(cfg.FlagOverrides)),
		logger:   logger,
	}
}

// Run executes one cycle without a deadline of its own and delivers the
// result to the notification sinks when the mode calls for it. A run cut
// short by the caller is returned but never announced.
func (s *Service) Run(ctx context.Context) entity.RunResult {
	result := s.evaluate(ctx)
	if result.Kind == entity.ResultTimeout {
		s.logger.Info("Run cancelled by caller, skipping delivery")
		return result
	}
	return s.deliver(ctx, result)
}

// RunWithWatchdog races the cycle against the configured timeout. Whichever
// finishes first is the only result delivered; the loser is cancelled. A
// timeout notification is sent only when the watchdog itself fired.
func (s *Service) RunWithWatchdog(ctx context.Context) entity.RunResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan entity.RunResult, 1)
	var once sync.Once
	emit := func(r entity.RunResult) {
		once.Do(func() { done <- r })
	}

	go func() {
		emit(s.evaluate(runCtx))
	}()

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	var (
		result entity.RunResult
		fired  bool
	)
	select {
	case result = <-done:
	case <-timer.C:
		s.logger.Warn("Run exceeded watchdog timeout", "timeout", s.cfg.Timeout)
		fired = true
		emit(s.renderer.Timeout(s.cfg.Mode, s.cfg.Timeout))
		result = <-done
	case <-ctx.Done():
		emit(s.renderer.Timeout(s.cfg.Mode, s.cfg.Timeout))
		result = <-done
	}
	cancel()

	// the run may also have observed the caller's cancellation first
	if result.Kind == entity.ResultTimeout && !fired {
		s.logger.Info("Run cancelled by caller, skipping delivery", "error", ctx.Err())
		return result
	}

	deliverCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer stop()
	return s.deliver(deliverCtx, result)
}

const deliveryTimeout = 15 * time.Second

// evaluate produces the terminal result. Notifications are drafted, not sent.
func (s *Service) evaluate(ctx context.Context) entity.RunResult {
	mode := s.cfg.Mode

	if mode.IsEvent() && s.cfg.EventDelay > 0 {
		// let the new network settle before probing it
		t := time.NewTimer(s.cfg.EventDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return s.renderer.Timeout(mode, s.cfg.Timeout)
		}
	}

	addrs, err := s.c.Acquirer.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return s.renderer.Timeout(mode, s.cfg.Timeout)
		}
		if !errors.Is(err, acquisition.ErrAcquisitionFailed) {
			s.logger.Error("Unexpected acquisition error", "error", err)
		}
		return s.renderer.AcquisitionFailed(mode)
	}

	if mode.IsEvent() && s.c.Detector != nil && !s.c.Detector.HasChanged(ctx, addrs) {
		s.logger.Info("Network unchanged, staying silent", "outbound", addrs.OutboundV4.Address)
		return entity.RunResult{Kind: entity.ResultSilent}
	}

	report := s.collect(ctx, addrs)
	if ctx.Err() != nil {
		return s.renderer.Timeout(mode, s.cfg.Timeout)
	}

	s.logger.Info("Network report ready",
		"mode", mode,
		"policy", report.Policy,
		"outbound", addrs.OutboundV4.Address,
		"risk", report.Risk.Score,
		"risk_source", report.Risk.Source)

	return s.renderer.Report(report)
}

// collect runs the enrichment batch concurrently
func (s *Service) collect(ctx context.Context, addrs entity.Addresses) entity.Report {
	report := entity.Report{
		Mode:      s.cfg.Mode,
		Language:  s.cfg.Language,
		Addresses: addrs,
		Policy:    entity.UnknownPolicy,
		Risk:      entity.RiskAssessment{Score: entity.DefaultRiskScore, Source: entity.RiskSourceDefault},
		IPType:    entity.UnknownIPType,
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if s.c.Policy != nil {
		run(func() { report.Policy = s.c.Policy.Discover(ctx).Name })
	}
	if s.c.Risk != nil {
		run(func() { report.Risk = s.c.Risk.Resolve(ctx, addrs.OutboundV4.Address) })
	}
	if s.c.IPType != nil {
		run(func() { report.IPType = s.c.IPType.Resolve(ctx) })
	}
	if s.c.Geo != nil {
		run(func() {
			report.Inbound = s.c.Geo.Enrich(ctx, s.cfg.Language, geoenrich.RoleInbound, addrs.Inbound.Address)
		})
		run(func() {
			report.Outbound = s.c.Geo.Enrich(ctx, s.cfg.Language, geoenrich.RoleOutbound, addrs.OutboundV4.Address)
		})
		if addrs.HasIPv6() {
			run(func() {
				rec := s.c.Geo.Enrich(ctx, s.cfg.Language, geoenrich.RoleOutboundV6, addrs.OutboundV6.Address)
				report.OutboundV6 = &rec
			})
		}
	}

	wg.Wait()

	if report.Policy == "" {
		report.Policy = entity.UnknownPolicy
	}
	return report
}

// deliver dispatches a drafted notification. Panel results pass through.
func (s *Service) deliver(ctx context.Context, result entity.RunResult) entity.RunResult {
	if result.Notification == nil || s.c.Notifier == nil {
		return result
	}
	draft := result.Notification
	if sent := s.c.Notifier.Notify(ctx, draft.Title, draft.Subtitle, draft.Body); sent != nil {
		result.Notification = sent
	}
	return result
}
