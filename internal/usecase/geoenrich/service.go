// Package geoenrich fetches geo/carrier data for the path's addresses from
// several providers and reconciles them into one record per address.
package geoenrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kr1s57/netlens/internal/adapter/external/geoip"
	"github.com/kr1s57/netlens/internal/entity"
)

// IPAPILookup is the shape A provider
type IPAPILookup interface {
	Lookup(ctx context.Context, ip string) (*geoip.IPAPIResponse, error)
	GetProviderName() string
}

// IPInfoLookup is the shape B provider
type IPInfoLookup interface {
	Lookup(ctx context.Context, ip string) (*geoip.IPInfoResponse, error)
	GetProviderName() string
}

// LocalGeoLookup is the shape C provider
type LocalGeoLookup interface {
	Lookup(ctx context.Context, ip string) (*geoip.LocalGeoResponse, error)
	GetProviderName() string
}

// OfflineLookup backfills from local databases
type OfflineLookup interface {
	Enabled() bool
	Lookup(ip string) (geoip.OfflineRecord, error)
}

// Service handles geo enrichment for the acquired addresses
type Service struct {
	ipapi       IPAPILookup
	ipinfo      IPInfoLookup
	localGeo    LocalGeoLookup
	offline     OfflineLookup
	homeCountry string
	logger      *slog.Logger
}

// NewService creates a new geo enrichment service. offline may be nil.
func NewService(ipapi IPAPILookup, ipinfo IPInfoLookup, localGeo LocalGeoLookup, offline OfflineLookup, homeCountry string, logger *slog.Logger) *Service {
	return &Service{
		ipapi:       ipapi,
		ipinfo:      ipinfo,
		localGeo:    localGeo,
		offline:     offline,
		homeCountry: homeCountry,
		logger:      logger,
	}
}

// Enrich fetches every shape the mode needs for ip concurrently and merges
// them. Provider failures only leave fields absent.
func (s *Service) Enrich(ctx context.Context, lang entity.GeoLanguage, role Role, ip string) entity.GeoRecord {
	payloads := s.Fetch(ctx, ip, ShapesFor(lang, role))

	var offline *geoip.OfflineRecord
	if s.offline != nil && s.offline.Enabled() {
		rec, err := s.offline.Lookup(ip)
		if err != nil {
			s.logger.Debug("Offline geo lookup failed", "ip", ip, "error", err)
		} else {
			offline = &rec
		}
	}

	return Merge(lang, role, payloads, s.homeCountry, offline)
}

// Fetch queries the requested shapes concurrently. Failed providers are
// left out of the result.
func (s *Service) Fetch(ctx context.Context, ip string, shapes []Shape) []ProviderPayload {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		payloads []ProviderPayload
	)

	collect := func(p ProviderPayload) {
		mu.Lock()
		defer mu.Unlock()
		payloads = append(payloads, p)
	}

	for _, shape := range shapes {
		wg.Add(1)
		go func(shape Shape) {
			defer wg.Done()
			p, err := s.fetchShape(ctx, ip, shape)
			if err != nil {
				s.logger.Debug("Geo provider failed", "provider", s.providerName(shape), "shape", string(shape), "ip", ip, "error", err)
				return
			}
			collect(p)
		}(shape)
	}
	wg.Wait()

	return payloads
}

func (s *Service) fetchShape(ctx context.Context, ip string, shape Shape) (ProviderPayload, error) {
	switch shape {
	case ShapeA:
		res, err := s.ipapi.Lookup(ctx, ip)
		return ProviderPayload{Shape: ShapeA, A: res}, err
	case ShapeB:
		res, err := s.ipinfo.Lookup(ctx, ip)
		return ProviderPayload{Shape: ShapeB, B: res}, err
	default:
		res, err := s.localGeo.Lookup(ctx, ip)
		return ProviderPayload{Shape: ShapeC, C: res}, err
	}
}

func (s *Service) providerName(shape Shape) string {
	switch shape {
	case ShapeA:
		return s.ipapi.GetProviderName()
	case ShapeB:
		return s.ipinfo.GetProviderName()
	default:
		return s.localGeo.GetProviderName()
	}
}
