// Package risk resolves the fraud score of the egress address through a
// tiered chain of reputation providers with a single-entry persisted cache.
package risk

import (
	"context"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/kr1s57/netlens/internal/adapter/external/threatintel"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/domain/fallback"
	"github.com/kr1s57/netlens/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the persisted state the resolver reads and writes
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// IPQSProvider is the keyed tier 1 provider
type IPQSProvider interface {
	CheckIP(ctx context.Context, ip string) (*threatintel.IPQSResult, error)
	GetProviderName() string
	IsConfigured() bool
}

// ProxyCheckProvider is tier 2
type ProxyCheckProvider interface {
	CheckIP(ctx context.Context, ip string) (*threatintel.ProxyCheckResult, error)
	GetProviderName() string
}

// ScamalyticsProvider is tier 3
type ScamalyticsProvider interface {
	CheckIP(ctx context.Context, ip string) (*threatintel.ScamalyticsResult, error)
	GetProviderName() string
}

// Resolver produces a risk assessment for an address. It never fails.
type Resolver struct {
	store       Store
	ipqs        IPQSProvider
	proxyCheck  ProxyCheckProvider
	scamalytics ScamalyticsProvider
	logger      *slog.Logger
}

// NewResolver creates a new risk resolver. ipqs may be nil.
func NewResolver(store Store, ipqs IPQSProvider, proxyCheck ProxyCheckProvider, scamalytics ScamalyticsProvider, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:       store,
		ipqs:        ipqs,
		proxyCheck:  proxyCheck,
		scamalytics: scamalytics,
		logger:      logger,
	}
}

// Resolve returns the cached assessment when the cache holds this exact
// address, otherwise walks IPQS, then ProxyCheck and Scamalytics in
// parallel, then the default score. Fresh results overwrite the cache.
func (r *Resolver) Resolve(ctx context.Context, address string) entity.RiskAssessment {
	if cached, ok := r.cached(ctx, address); ok {
		r.logger.Debug("Risk served from cache", "ip", address, "score", cached.Score, "source", cached.Source)
		return cached
	}

	var ipqsTier fallback.Attempt[entity.RiskAssessment]
	if r.ipqs != nil && r.ipqs.IsConfigured() {
		ipqsTier = r.ipqsAttempt(address)
	}

	assessment, _, ok := fallback.First(ctx,
		ipqsTier,
		fallback.Concurrently(r.proxyCheckAttempt(address), r.scamalyticsAttempt(address)),
	)
	if !ok {
		assessment = entity.RiskAssessment{Score: entity.DefaultRiskScore, Source: entity.RiskSourceDefault}
	}

	r.persist(ctx, address, assessment)
	return assessment
}

func (r *Resolver) cached(ctx context.Context, address string) (entity.RiskAssessment, bool) {
	raw, ok, err := r.store.Get(ctx, kvstore.KeyRiskCache)
	if err != nil {
		r.logger.Warn("Failed to read risk cache", "error", err)
		return entity.RiskAssessment{}, false
	}
	if !ok {
		return entity.RiskAssessment{}, false
	}

	var entry entity.RiskCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		r.logger.Debug("Ignoring malformed risk cache", "error", err)
		return entity.RiskAssessment{}, false
	}
	if entry.Address == "" || entry.Address != address {
		return entity.RiskAssessment{}, false
	}

	return entity.RiskAssessment{
		Score:     entity.ClampScore(entry.Score),
		Source:    entry.Source,
		FromCache: true,
	}, true
}

func (r *Resolver) persist(ctx context.Context, address string, a entity.RiskAssessment) {
	data, err := json.Marshal(entity.RiskCacheEntry{Address: address, Score: a.Score, Source: a.Source})
	if err != nil {
		r.logger.Warn("Failed to encode risk cache", "error", err)
		return
	}
	if err := r.store.Set(ctx, kvstore.KeyRiskCache, string(data)); err != nil {
		r.logger.Warn("Failed to write risk cache", "error", err)
	}
}

func (r *Resolver) ipqsAttempt(address string) fallback.Attempt[entity.RiskAssessment] {
	return func(ctx context.Context) (entity.RiskAssessment, bool) {
		res, err := r.ipqs.CheckIP(ctx, address)
		if err != nil {
			r.logger.Debug("Risk provider failed", "provider", r.ipqs.GetProviderName(), "ip", address, "error", err)
			return entity.RiskAssessment{}, false
		}
		return entity.RiskAssessment{Score: entity.ClampScore(res.FraudScore), Source: entity.RiskSourceIPQS}, true
	}
}

func (r *Resolver) proxyCheckAttempt(address string) fallback.Attempt[entity.RiskAssessment] {
	return func(ctx context.Context) (entity.RiskAssessment, bool) {
		res, err := r.proxyCheck.CheckIP(ctx, address)
		if err != nil {
			r.logger.Debug("Risk provider failed", "provider", r.proxyCheck.GetProviderName(), "ip", address, "error", err)
			return entity.RiskAssessment{}, false
		}
		return entity.RiskAssessment{Score: entity.ClampScore(res.RiskScore), Source: entity.RiskSourceProxyCheck}, true
	}
}

func (r *Resolver) scamalyticsAttempt(address string) fallback.Attempt[entity.RiskAssessment] {
	return func(ctx context.Context) (entity.RiskAssessment, bool) {
		res, err := r.scamalytics.CheckIP(ctx, address)
		if err != nil {
			r.logger.Debug("Risk provider failed", "provider", r.scamalytics.GetProviderName(), "ip", address, "error", err)
			return entity.RiskAssessment{}, false
		}
		return entity.RiskAssessment{Score: entity.ClampScore(res.FraudScore), Source: entity.RiskSourceScamalytics}, true
	}
}
