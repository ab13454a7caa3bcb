// Package app wires the adapters and use cases shared by the binaries.
package app

import (
	"fmt"
	"log/slog"

	"github.com/kr1s57/netlens/internal/adapter/external/geoip"
	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
	"github.com/kr1s57/netlens/internal/adapter/external/smtp"
	"github.com/kr1s57/netlens/internal/adapter/external/threatintel"
	"github.com/kr1s57/netlens/internal/adapter/external/trafficlog"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/config"
	"github.com/kr1s57/netlens/internal/usecase/acquisition"
	"github.com/kr1s57/netlens/internal/usecase/changedetect"
	"github.com/kr1s57/netlens/internal/usecase/geoenrich"
	"github.com/kr1s57/netlens/internal/usecase/iptype"
	"github.com/kr1s57/netlens/internal/usecase/netreport"
	"github.com/kr1s57/netlens/internal/usecase/notifications"
	"github.com/kr1s57/netlens/internal/usecase/policy"
	"github.com/kr1s57/netlens/internal/usecase/risk"
)

// Runtime owns the long-lived infrastructure: the state store, the HTTP
// client, the offline databases and the notification sinks. Use cases are
// cheap and built per run from a possibly overlaid config.
type Runtime struct {
	Store    *kvstore.Store
	Fetcher  *httpfetch.Client
	Offline  *geoip.Database
	Notifier *notifications.Service
	// Email is nil when SMTP is not configured
	Email *notifications.EmailSink

	ipapi    *geoip.IPAPIClient
	ipinfo   *geoip.IPInfoClient
	localGeo *geoip.LocalGeoClient
	traffic  trafficlog.Source

	logger *slog.Logger
}

// New opens the infrastructure described by cfg
func New(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, err := kvstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	fetcher, err := httpfetch.NewClient(httpfetch.Config{
		ProxyURL:  cfg.HTTP.ProxyURL,
		Timeout:   cfg.HTTP.Timeout,
		RateLimit: cfg.HTTP.RateLimit,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create http client: %w", err)
	}

	offline, err := geoip.OpenDatabase(cfg.GeoIP.CountryDBPath, cfg.GeoIP.ASNDBPath)
	if err != nil {
		// online providers still work without the databases
		logger.Warn("GeoIP databases unavailable", "error", err)
		offline = nil
	}

	rt := &Runtime{
		Store:    store,
		Fetcher:  fetcher,
		Offline:  offline,
		Notifier: notifications.NewService(logger, notifications.NewLogSink(logger)),
		logger:   logger,
	}

	geoCfg := func(url string) geoip.Config {
		return geoip.Config{BaseURL: url, CacheTTL: cfg.GeoIP.CacheTTL, MaxCacheSize: cfg.GeoIP.MaxCacheSize}
	}
	rt.ipapi = geoip.NewIPAPIClient(geoCfg(cfg.Providers.IPAPIURL), fetcher)
	rt.ipinfo = geoip.NewIPInfoClient(geoCfg(cfg.Providers.IPInfoURL), fetcher)
	rt.localGeo = geoip.NewLocalGeoClient(geoCfg(cfg.Providers.LocalGeoURL), fetcher)

	switch {
	case cfg.Traffic.SurgeURL != "":
		rt.traffic = trafficlog.NewSurgeClient(trafficlog.SurgeConfig{BaseURL: cfg.Traffic.SurgeURL, APIKey: cfg.Traffic.SurgeKey}, fetcher)
	case cfg.Traffic.ClashURL != "":
		rt.traffic = trafficlog.NewClashClient(trafficlog.ClashConfig{BaseURL: cfg.Traffic.ClashURL, Secret: cfg.Traffic.ClashSecret}, fetcher)
	}

	mailer := smtp.NewClient(smtp.Config{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Security:   cfg.SMTP.Security,
		FromEmail:  cfg.SMTP.FromEmail,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		Recipients: cfg.SMTP.Recipients,
	}, logger)
	if mailer.IsConfigured() {
		rt.Email = notifications.NewEmailSink(mailer, logger)
		rt.Notifier.AddSink(rt.Email)
	}

	logger.Info("Runtime ready",
		"store", store.Stats().Path,
		"offline_geo", offline.Enabled(),
		"traffic_source", rt.trafficName(),
		"smtp", rt.Email != nil)

	return rt, nil
}

// Service builds the report service for one run
func (rt *Runtime) Service(cfg config.Config) (*netreport.Service, error) {
	logger := rt.logger

	discoverer, err := policy.NewDiscoverer(policy.Config{
		ProbePattern: cfg.Traffic.ProbePattern,
		RetryDelay:   cfg.Run.PolicyRetryDelay,
	}, rt.traffic, rt.Store, logger)
	if err != nil {
		return nil, err
	}

	ipqs := threatintel.NewIPQSClient(threatintel.IPQSConfig{APIKey: cfg.Providers.IPQSKey, BaseURL: cfg.Providers.IPQSURL}, rt.Fetcher)
	proxyCheck := threatintel.NewProxyCheckClient(threatintel.ProxyCheckConfig{BaseURL: cfg.Providers.ProxyCheckURL}, rt.Fetcher)
	scamalytics := threatintel.NewScamalyticsClient(threatintel.ScamalyticsConfig{BaseURL: cfg.Providers.ScamalyticsURL}, rt.Fetcher)
	ippure := threatintel.NewIPPureClient(threatintel.IPPureConfig{InfoURL: cfg.Providers.IPPureInfoURL, HTMLURL: cfg.Providers.IPPureHTMLURL}, rt.Fetcher)

	acquirer := acquisition.NewService(acquisition.Config{
		InboundURL:    cfg.Providers.InboundIPURL,
		OutboundV4URL: cfg.Providers.OutboundIPv4URL,
		OutboundV6URL: cfg.Providers.OutboundIPv6URL,
		IPv6Timeout:   cfg.Run.IPv6Timeout,
	}, rt.Fetcher, logger)

	var offline geoenrich.OfflineLookup
	if rt.Offline != nil {
		offline = rt.Offline
	}

	return netreport.NewService(netreport.Config{
		Mode:          cfg.Run.Mode,
		Language:      cfg.Run.Language,
		EventDelay:    cfg.Run.EventDelay,
		Timeout:       cfg.Run.Timeout,
		FlagOverrides: cfg.Run.FlagOverrides,
	}, netreport.Components{
		Acquirer: acquirer,
		Detector: changedetect.NewDetector(rt.Store, logger),
		Policy:   discoverer,
		Risk:     risk.NewResolver(rt.Store, ipqs, proxyCheck, scamalytics, logger),
		IPType:   iptype.NewResolver(ippure, logger),
		Geo:      geoenrich.NewService(rt.ipapi, rt.ipinfo, rt.localGeo, offline, cfg.Run.HomeCountry, logger),
		Notifier: rt.Notifier,
	}, logger), nil
}

// Close releases the store and the offline databases
func (rt *Runtime) Close() error {
	if rt.Offline != nil {
		if err := rt.Offline.Close(); err != nil {
			rt.logger.Warn("Failed to close GeoIP databases", "error", err)
		}
	}
	return rt.Store.Close()
}

func (rt *Runtime) trafficName() string {
	if rt.traffic == nil {
		return "none"
	}
	return rt.traffic.Name()
}
