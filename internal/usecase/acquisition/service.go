// Package acquisition resolves the public inbound, outbound IPv4 and
// optional outbound IPv6 addresses of the current network path.
package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
	"github.com/kr1s57/netlens/internal/entity"
)

// ErrAcquisitionFailed is returned when the inbound or outbound IPv4
// address could not be determined
var ErrAcquisitionFailed = errors.New("acquisition: inbound or outbound IPv4 address unavailable")

// TextFetcher fetches a plain-text address probe
type TextFetcher interface {
	FetchText(ctx context.Context, req httpfetch.Request) (string, error)
}

type family int

const (
	anyFamily family = iota
	ipv4Only
	ipv6Only
)

// Config holds the probe endpoints
type Config struct {
	InboundURL    string
	OutboundV4URL string
	OutboundV6URL string
	IPv6Timeout   time.Duration
}

// Service performs address acquisition
type Service struct {
	fetcher TextFetcher
	config  Config
	logger  *slog.Logger
}

// NewService creates a new acquisition service
func NewService(cfg Config, fetcher TextFetcher, logger *slog.Logger) *Service {
	if cfg.IPv6Timeout <= 0 {
		cfg.IPv6Timeout = 2 * time.Second
	}
	return &Service{fetcher: fetcher, config: cfg, logger: logger}
}

// Acquire fetches the three addresses concurrently. The inbound probe
// bypasses the proxy; the outbound probes use the default route. The IPv6
// probe is bounded by its own timeout. Outbound answers must match their
// family: an IPv6 answer without a colon is discarded (dual-stack probes
// fall back to IPv4 on v4-only paths), and so is a colon in a v4 answer.
func (s *Service) Acquire(ctx context.Context) (entity.Addresses, error) {
	var (
		wg                    sync.WaitGroup
		inbound, outV4, outV6 *entity.AddressRecord
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		inbound = s.probe(ctx, "inbound", anyFamily, httpfetch.Request{URL: s.config.InboundURL, Policy: httpfetch.PolicyDirect})
	}()
	go func() {
		defer wg.Done()
		outV4 = s.probe(ctx, "outbound_v4", ipv4Only, httpfetch.Request{URL: s.config.OutboundV4URL})
	}()
	go func() {
		defer wg.Done()
		if s.config.OutboundV6URL == "" {
			return
		}
		v6ctx, cancel := context.WithTimeout(ctx, s.config.IPv6Timeout)
		defer cancel()
		outV6 = s.probe(v6ctx, "outbound_v6", ipv6Only, httpfetch.Request{URL: s.config.OutboundV6URL})
	}()
	wg.Wait()

	if inbound == nil || outV4 == nil {
		return entity.Addresses{}, ErrAcquisitionFailed
	}

	return entity.Addresses{
		Inbound:    *inbound,
		OutboundV4: *outV4,
		OutboundV6: outV6,
	}, nil
}

func (s *Service) probe(ctx context.Context, role string, want family, req httpfetch.Request) *entity.AddressRecord {
	body, err := s.fetcher.FetchText(ctx, req)
	if err != nil {
		s.logger.Debug("Address probe failed", "role", role, "error", err)
		return nil
	}
	rec := ParseAddress(body)
	if rec != nil && want != anyFamily && rec.IsIPv6 != (want == ipv6Only) {
		s.logger.Debug("Discarding probe answer of the wrong family", "role", role, "answer", rec.Address)
		return nil
	}
	return rec
}

// ParseAddress trims a probe answer and validates it as an IP address.
// Anything that is not an address is treated as absent.
func ParseAddress(body string) *entity.AddressRecord {
	text := strings.TrimSpace(body)
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return nil
	}
	return &entity.AddressRecord{
		Address: addr.String(),
		IsIPv6:  strings.Contains(text, ":"),
	}
}
