package geoip

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// Config holds the settings shared by the online geo clients
type Config struct {
	BaseURL string
	// CacheTTL is how long to cache lookup results; zero disables caching
	CacheTTL time.Duration
	// MaxCacheSize is the maximum number of entries in the cache
	MaxCacheSize int
}

// IPAPIClient queries ip-api.com (free tier: 45 requests/minute)
type IPAPIClient struct {
	baseURL string
	fetcher httpfetch.Fetcher
	cache   *lookupCache[*IPAPIResponse]
}

// IPAPIResponse represents the response from ip-api.com
type IPAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
	Query       string `json:"query"`
}

// NewIPAPIClient creates a new ip-api.com client
func NewIPAPIClient(cfg Config, fetcher httpfetch.Fetcher) *IPAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://ip-api.com/json"
	}
	return &IPAPIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
		cache:   newLookupCache[*IPAPIResponse](cfg.MaxCacheSize, cfg.CacheTTL),
	}
}

// Lookup performs a geolocation lookup for an IP address
func (c *IPAPIClient) Lookup(ctx context.Context, ip string) (*IPAPIResponse, error) {
	if cached, ok := c.cache.Get(ip); ok {
		return cached, nil
	}

	reqURL := fmt.Sprintf("%s/%s?fields=status,message,country,countryCode,region,regionName,city,isp,org,as,query",
		c.baseURL, url.PathEscape(ip))

	var apiResp IPAPIResponse
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: reqURL}, &apiResp); err != nil {
		return nil, fmt.Errorf("ip-api lookup failed: %w", err)
	}

	if apiResp.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup failed: %s", apiResp.Message)
	}

	c.cache.Set(ip, &apiResp)
	return &apiResp, nil
}

// GetProviderName returns the provider name
func (c *IPAPIClient) GetProviderName() string {
	return "ip-api.com"
}
