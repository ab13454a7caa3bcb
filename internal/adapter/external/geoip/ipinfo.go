package geoip

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// IPInfoClient queries ipinfo.io
type IPInfoClient struct {
	baseURL string
	fetcher httpfetch.Fetcher
	cache   *lookupCache[*IPInfoResponse]
}

// IPInfoResponse represents the response from ipinfo.io
type IPInfoResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Org     string `json:"org"`
	Bogon   bool   `json:"bogon"`
}

// NewIPInfoClient creates a new ipinfo.io client
func NewIPInfoClient(cfg Config, fetcher httpfetch.Fetcher) *IPInfoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ipinfo.io"
	}
	return &IPInfoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
		cache:   newLookupCache[*IPInfoResponse](cfg.MaxCacheSize, cfg.CacheTTL),
	}
}

// Lookup performs a geolocation lookup for an IP address. Bogon answers
// carry no geography and are reported as errors.
func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (*IPInfoResponse, error) {
	if cached, ok := c.cache.Get(ip); ok {
		return cached, nil
	}

	reqURL := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(ip))

	var apiResp IPInfoResponse
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: reqURL}, &apiResp); err != nil {
		return nil, fmt.Errorf("ipinfo lookup failed: %w", err)
	}
	if apiResp.Bogon {
		return nil, fmt.Errorf("ipinfo lookup failed: %s is a bogon address", ip)
	}

	c.cache.Set(ip, &apiResp)
	return &apiResp, nil
}

// GetProviderName returns the provider name
func (c *IPInfoClient) GetProviderName() string {
	return "ipinfo.io"
}
