// Package policy recovers the name of the routing policy that carried the
// outbound address probe, by searching the proxy client's request log.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/trafficlog"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/domain/fallback"
	"github.com/kr1s57/netlens/internal/entity"
)

const (
	firstSearchDepth  = 10
	secondSearchDepth = 5
)

// Store is the persisted state used as the last-resort tier
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Discoverer finds the routing policy of the probe request
type Discoverer struct {
	source     trafficlog.Source
	store      Store
	probe      *regexp.Regexp
	retryDelay time.Duration
	logger     *slog.Logger
}

// Config holds discovery settings
type Config struct {
	// ProbePattern matches the URL of the outbound address probe
	ProbePattern string
	RetryDelay   time.Duration
}

// NewDiscoverer creates a new policy discoverer. source may be nil when no
// traffic introspection backend is configured.
func NewDiscoverer(cfg Config, source trafficlog.Source, store Store, logger *slog.Logger) (*Discoverer, error) {
	probe, err := regexp.Compile(cfg.ProbePattern)
	if err != nil {
		return nil, fmt.Errorf("compile probe pattern: %w", err)
	}
	return &Discoverer{
		source:     source,
		store:      store,
		probe:      probe,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}, nil
}

// Discover searches the newest 10 requests, waits, searches the newest 5,
// then falls back to the last persisted policy and finally to "Unknown".
// It never fails.
func (d *Discoverer) Discover(ctx context.Context) entity.PolicyAssignment {
	var search, retry fallback.Attempt[string]
	if d.source != nil {
		search = d.searchAttempt(firstSearchDepth)
		retry = d.delayed(d.searchAttempt(secondSearchDepth))
	}

	name, tier, ok := fallback.First(ctx, search, retry, d.persistedAttempt)
	if !ok {
		return entity.PolicyAssignment{Name: entity.UnknownPolicy}
	}

	// only live discoveries refresh the persisted value
	if tier < 2 {
		if err := d.store.Set(ctx, kvstore.KeyLastPolicy, name); err != nil {
			d.logger.Warn("Failed to persist policy", "error", err)
		}
	}

	d.logger.Debug("Policy discovered", "policy", name, "tier", tier)
	return entity.PolicyAssignment{Name: name}
}

func (d *Discoverer) searchAttempt(depth int) fallback.Attempt[string] {
	return func(ctx context.Context) (string, bool) {
		reqs, err := d.source.RecentRequests(ctx, depth)
		if err != nil {
			d.logger.Debug("Traffic log unavailable", "provider", d.source.Name(), "error", err)
			return "", false
		}
		for _, r := range reqs {
			if r.Policy != "" && d.probe.MatchString(r.URL) {
				return r.Policy, true
			}
		}
		return "", false
	}
}

func (d *Discoverer) delayed(attempt fallback.Attempt[string]) fallback.Attempt[string] {
	return func(ctx context.Context) (string, bool) {
		if d.retryDelay > 0 {
			timer := time.NewTimer(d.retryDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return "", false
			}
		}
		return attempt(ctx)
	}
}

func (d *Discoverer) persistedAttempt(ctx context.Context) (string, bool) {
	name, ok, err := d.store.Get(ctx, kvstore.KeyLastPolicy)
	if err != nil {
		d.logger.Warn("Failed to read persisted policy", "error", err)
		return "", false
	}
	return name, ok && name != ""
}
