package threatintel

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProxyCheckClient handles communication with the proxycheck.io v2 API
type ProxyCheckClient struct {
	baseURL string
	fetcher httpfetch.Fetcher
}

// ProxyCheckConfig holds ProxyCheck client configuration
type ProxyCheckConfig struct {
	BaseURL string
}

// NewProxyCheckClient creates a new ProxyCheck client
func NewProxyCheckClient(cfg ProxyCheckConfig, fetcher httpfetch.Fetcher) *ProxyCheckClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://proxycheck.io/v2"
	}
	return &ProxyCheckClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
	}
}

// ProxyCheckEntry is the per-address object keyed by the queried IP
type ProxyCheckEntry struct {
	Proxy    string `json:"proxy"`
	Type     string `json:"type"`
	Risk     *int   `json:"risk"`
	Provider string `json:"provider"`
	ISOCode  string `json:"isocode"`
}

// ProxyCheckResult represents the processed result
type ProxyCheckResult struct {
	IP         string `json:"ip"`
	RiskScore  int    `json:"risk_score"`
	IsProxy    bool   `json:"is_proxy"`
	ProxyType  string `json:"proxy_type"`
	Provider   string `json:"provider"`
	CountryISO string `json:"country_iso"`
}

// CheckIP queries ProxyCheck for ip. The response is keyed by the address, so
// it is decoded in two steps; a missing key or missing risk is an error.
func (c *ProxyCheckClient) CheckIP(ctx context.Context, ip string) (*ProxyCheckResult, error) {
	reqURL := fmt.Sprintf("%s/%s?risk=1&vpn=1&asn=1", c.baseURL, url.PathEscape(ip))

	var apiResp map[string]jsoniter.RawMessage
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: reqURL}, &apiResp); err != nil {
		return nil, err
	}

	raw, ok := apiResp[ip]
	if !ok {
		var status string
		_ = json.Unmarshal(apiResp["status"], &status)
		return nil, fmt.Errorf("ProxyCheck response has no entry for %s (status %q)", ip, status)
	}

	var entry ProxyCheckEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode ProxyCheck entry: %w", err)
	}
	if entry.Risk == nil {
		return nil, fmt.Errorf("ProxyCheck response missing risk")
	}

	return &ProxyCheckResult{
		IP:         ip,
		RiskScore:  *entry.Risk,
		IsProxy:    strings.EqualFold(entry.Proxy, "yes"),
		ProxyType:  entry.Type,
		Provider:   entry.Provider,
		CountryISO: entry.ISOCode,
	}, nil
}

// GetProviderName returns the provider name
func (c *ProxyCheckClient) GetProviderName() string {
	return "ProxyCheck"
}
