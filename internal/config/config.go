package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Run       RunConfig
	Providers ProvidersConfig
	HTTP      HTTPConfig
	Store     StoreConfig
	Traffic   TrafficConfig
	GeoIP     GeoIPConfig
	SMTP      SMTPConfig
	Panel     PanelConfig
	Watch     WatchConfig
}

type AppConfig struct {
	Env string
}

// RunConfig drives a single invocation
type RunConfig struct {
	Mode             entity.TriggerMode
	Language         entity.GeoLanguage
	HomeCountry      string
	EventDelay       time.Duration
	Timeout          time.Duration
	IPv6Timeout      time.Duration
	PolicyRetryDelay time.Duration
	FlagOverrides    map[string]string
}

type ProvidersConfig struct {
	IPQSKey string

	// Address probes
	InboundIPURL    string
	OutboundIPv4URL string
	OutboundIPv6URL string

	// Risk
	IPQSURL        string
	ProxyCheckURL  string
	ScamalyticsURL string

	// IP type
	IPPureInfoURL string
	IPPureHTMLURL string

	// Geo shapes
	IPAPIURL    string
	IPInfoURL   string
	LocalGeoURL string
}

type HTTPConfig struct {
	ProxyURL  string
	Timeout   time.Duration
	RateLimit int // requests per second
}

type StoreConfig struct {
	// Path of the pebble directory; empty keeps state in memory
	Path string
}

type TrafficConfig struct {
	SurgeURL     string
	SurgeKey     string
	ClashURL     string
	ClashSecret  string
	ProbePattern string
}

type GeoIPConfig struct {
	CountryDBPath string
	ASNDBPath     string
	CacheTTL      time.Duration
	MaxCacheSize  int
}

type SMTPConfig struct {
	Host       string
	Port       int
	Security   string
	FromEmail  string
	Username   string
	Password   string
	Recipients []string
}

type PanelConfig struct {
	Host string
	Port int
}

// WatchConfig drives the panel API's background poller; a zero interval
// disables it
type WatchConfig struct {
	Interval time.Duration
	Cooldown time.Duration
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/netlens")

	// Environment variables
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("Error reading config file", "error", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	overrides, err := parsePairs(v.GetString("FLAG_OVERRIDES"))
	if err != nil {
		return nil, fmt.Errorf("parse FLAG_OVERRIDES: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Env: v.GetString("APP_ENV"),
		},
		Run: RunConfig{
			Mode:             entity.ParseTriggerMode(v.GetString("TRIGGER_MODE")),
			Language:         entity.ParseGeoLanguage(v.GetString("GEO_LANGUAGE")),
			HomeCountry:      v.GetString("HOME_COUNTRY"),
			EventDelay:       seconds(v, "EVENT_DELAY"),
			Timeout:          v.GetDuration("RUN_TIMEOUT"),
			IPv6Timeout:      v.GetDuration("IPV6_TIMEOUT"),
			PolicyRetryDelay: v.GetDuration("POLICY_RETRY_DELAY"),
			FlagOverrides:    overrides,
		},
		Providers: ProvidersConfig{
			IPQSKey:         v.GetString("IPQS_API_KEY"),
			InboundIPURL:    v.GetString("INBOUND_IP_URL"),
			OutboundIPv4URL: v.GetString("OUTBOUND_IPV4_URL"),
			OutboundIPv6URL: v.GetString("OUTBOUND_IPV6_URL"),
			IPQSURL:         v.GetString("IPQS_URL"),
			ProxyCheckURL:   v.GetString("PROXYCHECK_URL"),
			ScamalyticsURL:  v.GetString("SCAMALYTICS_URL"),
			IPPureInfoURL:   v.GetString("IPPURE_INFO_URL"),
			IPPureHTMLURL:   v.GetString("IPPURE_HTML_URL"),
			IPAPIURL:        v.GetString("IPAPI_URL"),
			IPInfoURL:       v.GetString("IPINFO_URL"),
			LocalGeoURL:     v.GetString("LOCAL_GEO_URL"),
		},
		HTTP: HTTPConfig{
			ProxyURL:  v.GetString("PROXY_URL"),
			Timeout:   v.GetDuration("HTTP_TIMEOUT"),
			RateLimit: v.GetInt("HTTP_RATE_LIMIT"),
		},
		Store: StoreConfig{
			Path: v.GetString("STORE_PATH"),
		},
		Traffic: TrafficConfig{
			SurgeURL:     v.GetString("SURGE_API_URL"),
			SurgeKey:     v.GetString("SURGE_API_KEY"),
			ClashURL:     v.GetString("CLASH_API_URL"),
			ClashSecret:  v.GetString("CLASH_API_SECRET"),
			ProbePattern: v.GetString("TRAFFIC_PROBE_PATTERN"),
		},
		GeoIP: GeoIPConfig{
			CountryDBPath: v.GetString("GEOIP_DB_PATH"),
			ASNDBPath:     v.GetString("GEOIP_ASN_DB_PATH"),
			CacheTTL:      v.GetDuration("GEO_CACHE_TTL"),
			MaxCacheSize:  v.GetInt("GEO_CACHE_SIZE"),
		},
		SMTP: SMTPConfig{
			Host:       v.GetString("SMTP_HOST"),
			Port:       v.GetInt("SMTP_PORT"),
			Security:   v.GetString("SMTP_SECURITY"),
			FromEmail:  v.GetString("SMTP_FROM"),
			Username:   v.GetString("SMTP_USERNAME"),
			Password:   v.GetString("SMTP_PASSWORD"),
			Recipients: splitList(v.GetString("SMTP_RECIPIENTS")),
		},
		Panel: PanelConfig{
			Host: v.GetString("PANEL_HOST"),
			Port: v.GetInt("PANEL_PORT"),
		},
		Watch: WatchConfig{
			Interval: v.GetDuration("WATCH_INTERVAL"),
			Cooldown: v.GetDuration("WATCH_COOLDOWN"),
		},
	}

	if config.Traffic.ProbePattern == "" {
		config.Traffic.ProbePattern = probePatternFor(config.Providers.OutboundIPv4URL)
	}
	if _, err := regexp.Compile(config.Traffic.ProbePattern); err != nil {
		return nil, fmt.Errorf("compile TRAFFIC_PROBE_PATTERN: %w", err)
	}

	return config, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("APP_ENV")

	// Run
	v.BindEnv("TRIGGER_MODE")
	v.BindEnv("GEO_LANGUAGE")
	v.BindEnv("HOME_COUNTRY")
	v.BindEnv("EVENT_DELAY")
	v.BindEnv("RUN_TIMEOUT")
	v.BindEnv("IPV6_TIMEOUT")
	v.BindEnv("POLICY_RETRY_DELAY")
	v.BindEnv("FLAG_OVERRIDES")

	// Providers
	v.BindEnv("IPQS_API_KEY")
	v.BindEnv("INBOUND_IP_URL")
	v.BindEnv("OUTBOUND_IPV4_URL")
	v.BindEnv("OUTBOUND_IPV6_URL")
	v.BindEnv("IPQS_URL")
	v.BindEnv("PROXYCHECK_URL")
	v.BindEnv("SCAMALYTICS_URL")
	v.BindEnv("IPPURE_INFO_URL")
	v.BindEnv("IPPURE_HTML_URL")
	v.BindEnv("IPAPI_URL")
	v.BindEnv("IPINFO_URL")
	v.BindEnv("LOCAL_GEO_URL")

	// HTTP
	v.BindEnv("PROXY_URL")
	v.BindEnv("HTTP_TIMEOUT")
	v.BindEnv("HTTP_RATE_LIMIT")

	// Store
	v.BindEnv("STORE_PATH")

	// Traffic introspection
	v.BindEnv("SURGE_API_URL")
	v.BindEnv("SURGE_API_KEY")
	v.BindEnv("CLASH_API_URL")
	v.BindEnv("CLASH_API_SECRET")
	v.BindEnv("TRAFFIC_PROBE_PATTERN")

	// GeoIP databases
	v.BindEnv("GEOIP_DB_PATH")
	v.BindEnv("GEOIP_ASN_DB_PATH")
	v.BindEnv("GEO_CACHE_TTL")
	v.BindEnv("GEO_CACHE_SIZE")

	// SMTP
	v.BindEnv("SMTP_HOST")
	v.BindEnv("SMTP_PORT")
	v.BindEnv("SMTP_SECURITY")
	v.BindEnv("SMTP_FROM")
	v.BindEnv("SMTP_USERNAME")
	v.BindEnv("SMTP_PASSWORD")
	v.BindEnv("SMTP_RECIPIENTS")

	// Panel API
	v.BindEnv("PANEL_HOST")
	v.BindEnv("PANEL_PORT")

	// Background watcher
	v.BindEnv("WATCH_INTERVAL")
	v.BindEnv("WATCH_COOLDOWN")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_ENV", "production")

	// Run defaults
	v.SetDefault("TRIGGER_MODE", string(entity.TriggerEvent))
	v.SetDefault("GEO_LANGUAGE", string(entity.GeoLanguagePrimary))
	v.SetDefault("HOME_COUNTRY", "中国")
	v.SetDefault("EVENT_DELAY", 2)
	v.SetDefault("RUN_TIMEOUT", 28*time.Second)
	v.SetDefault("IPV6_TIMEOUT", 2*time.Second)
	v.SetDefault("POLICY_RETRY_DELAY", time.Second)

	// Provider endpoints
	v.SetDefault("INBOUND_IP_URL", "https://api-ipv4.ip.sb/ip")
	v.SetDefault("OUTBOUND_IPV4_URL", "https://api.ipify.org")
	v.SetDefault("OUTBOUND_IPV6_URL", "https://api6.ipify.org")
	v.SetDefault("IPQS_URL", "https://ipqualityscore.com/api/json/ip")
	v.SetDefault("PROXYCHECK_URL", "https://proxycheck.io/v2")
	v.SetDefault("SCAMALYTICS_URL", "https://scamalytics.com/ip")
	v.SetDefault("IPPURE_INFO_URL", "https://my.ippure.com/v1/info")
	v.SetDefault("IPPURE_HTML_URL", "https://ippure.com/")
	v.SetDefault("IPAPI_URL", "http://ip-api.com/json")
	v.SetDefault("IPINFO_URL", "https://ipinfo.io")
	v.SetDefault("LOCAL_GEO_URL", "https://qifu-api.baidubce.com/ip/geo/v1/district")

	// HTTP defaults
	v.SetDefault("HTTP_TIMEOUT", 8*time.Second)
	v.SetDefault("HTTP_RATE_LIMIT", 20)

	// Geo lookup cache, only useful to the long-running panel API
	v.SetDefault("GEO_CACHE_TTL", 10*time.Minute)
	v.SetDefault("GEO_CACHE_SIZE", 1000)

	// SMTP defaults
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_SECURITY", "tls")

	// Panel defaults
	v.SetDefault("PANEL_HOST", "127.0.0.1")
	v.SetDefault("PANEL_PORT", 8787)

	// Watcher defaults
	v.SetDefault("WATCH_INTERVAL", 0)
	v.SetDefault("WATCH_COOLDOWN", 30*time.Second)
}

// ApplyArgument overlays a host-supplied argument string ("k=v&k2=v2") onto
// a copy of cfg. Recognised keys: mode, ipqs_key, lang, delay, home, timeout.
func ApplyArgument(cfg Config, argument string) (Config, error) {
	argument = strings.TrimSpace(argument)
	if argument == "" {
		return cfg, nil
	}

	values, err := url.ParseQuery(argument)
	if err != nil {
		return cfg, fmt.Errorf("parse argument: %w", err)
	}

	if mode := values.Get("mode"); mode != "" {
		cfg.Run.Mode = entity.ParseTriggerMode(mode)
	}
	if key := values.Get("ipqs_key"); key != "" {
		cfg.Providers.IPQSKey = key
	}
	if lang := values.Get("lang"); lang != "" {
		cfg.Run.Language = entity.ParseGeoLanguage(lang)
	}
	if home := values.Get("home"); home != "" {
		cfg.Run.HomeCountry = home
	}
	if delay := values.Get("delay"); delay != "" {
		secs, err := strconv.Atoi(delay)
		if err != nil || secs < 0 {
			return cfg, fmt.Errorf("invalid delay %q", delay)
		}
		cfg.Run.EventDelay = time.Duration(secs) * time.Second
	}
	if timeout := values.Get("timeout"); timeout != "" {
		secs, err := strconv.Atoi(timeout)
		if err != nil || secs <= 0 {
			return cfg, fmt.Errorf("invalid timeout %q", timeout)
		}
		cfg.Run.Timeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// SetupLogger writes to stderr so stdout stays reserved for run results
func SetupLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// seconds reads a plain integer as seconds, accepting duration strings too
func seconds(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return v.GetDuration(key)
}

func parsePairs(raw string) (map[string]string, error) {
	pairs := make(map[string]string)
	for _, item := range splitList(raw) {
		from, to, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("invalid pair %q", item)
		}
		pairs[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	return pairs, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func probePatternFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return regexp.QuoteMeta(rawURL)
	}
	return regexp.QuoteMeta(u.Host)
}
