// Package iptype classifies the egress address as residential or not and
// broadcast (anycast) or native.
package iptype

import (
	"context"
	"log/slog"

	"github.com/kr1s57/netlens/internal/adapter/external/threatintel"
	"github.com/kr1s57/netlens/internal/domain/fallback"
	"github.com/kr1s57/netlens/internal/entity"
)

// Classifier is the IPPure capability used by the resolver
type Classifier interface {
	GetInfo(ctx context.Context) (*threatintel.IPPureInfo, error)
	ClassifyPage(ctx context.Context) (*threatintel.IPPureClassification, error)
	GetProviderName() string
}

// Resolver produces an IP type assessment. It never fails.
type Resolver struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewResolver creates a new IP type resolver
func NewResolver(classifier Classifier, logger *slog.Logger) *Resolver {
	return &Resolver{classifier: classifier, logger: logger}
}

// Resolve tries the structured endpoint, then the HTML page, then gives up
// with both flags unknown.
func (r *Resolver) Resolve(ctx context.Context) entity.IPTypeAssessment {
	result, tier, ok := fallback.First(ctx, r.infoAttempt, r.pageAttempt)
	if !ok {
		return entity.UnknownIPType
	}
	r.logger.Debug("IP type resolved", "tier", tier, "residential", result.IsResidential, "broadcast", result.IsBroadcast)
	return result
}

func (r *Resolver) infoAttempt(ctx context.Context) (entity.IPTypeAssessment, bool) {
	info, err := r.classifier.GetInfo(ctx)
	if err != nil {
		r.logger.Debug("IP type provider failed", "provider", r.classifier.GetProviderName(), "tier", "info", "error", err)
		return entity.IPTypeAssessment{}, false
	}
	return entity.IPTypeAssessment{
		IsResidential: tristate(info.IsResidential),
		IsBroadcast:   tristate(info.IsBroadcast),
	}, true
}

func (r *Resolver) pageAttempt(ctx context.Context) (entity.IPTypeAssessment, bool) {
	page, err := r.classifier.ClassifyPage(ctx)
	if err != nil {
		r.logger.Debug("IP type provider failed", "provider", r.classifier.GetProviderName(), "tier", "page", "error", err)
		return entity.IPTypeAssessment{}, false
	}
	return entity.IPTypeAssessment{
		IsResidential: tristate(page.IsResidential),
		IsBroadcast:   tristate(page.IsBroadcast),
	}, true
}

func tristate(b *bool) entity.Tristate {
	if b == nil {
		return entity.Unknown
	}
	return entity.TristateOf(*b)
}
