package geoip

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// LocalGeoClient queries a provider that answers with localized (zh)
// country, province, city and carrier names
type LocalGeoClient struct {
	baseURL string
	fetcher httpfetch.Fetcher
	cache   *lookupCache[*LocalGeoResponse]
}

// LocalGeoResponse is the localized provider envelope
type LocalGeoResponse struct {
	Code string       `json:"code"`
	Msg  string       `json:"msg"`
	IP   string       `json:"ip"`
	Data LocalGeoData `json:"data"`
}

// LocalGeoData holds the localized names
type LocalGeoData struct {
	Continent string `json:"continent"`
	Country   string `json:"country"`
	Prov      string `json:"prov"`
	City      string `json:"city"`
	District  string `json:"district"`
	ISP       string `json:"isp"`
	Owner     string `json:"owner"`
}

// NewLocalGeoClient creates a new localized geo client
func NewLocalGeoClient(cfg Config, fetcher httpfetch.Fetcher) *LocalGeoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://qifu-api.baidubce.com/ip/geo/v1/district"
	}
	return &LocalGeoClient{
		baseURL: cfg.BaseURL,
		fetcher: fetcher,
		cache:   newLookupCache[*LocalGeoResponse](cfg.MaxCacheSize, cfg.CacheTTL),
	}
}

// Lookup performs a localized geolocation lookup for an IP address
func (c *LocalGeoClient) Lookup(ctx context.Context, ip string) (*LocalGeoResponse, error) {
	if cached, ok := c.cache.Get(ip); ok {
		return cached, nil
	}

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	reqURL := c.baseURL + sep + "ip=" + url.QueryEscape(ip)

	var apiResp LocalGeoResponse
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: reqURL}, &apiResp); err != nil {
		return nil, fmt.Errorf("local geo lookup failed: %w", err)
	}
	if apiResp.Code != "" && !strings.EqualFold(apiResp.Code, "success") {
		return nil, fmt.Errorf("local geo lookup failed: %s %s", apiResp.Code, apiResp.Msg)
	}
	if apiResp.Data.Country == "" {
		return nil, fmt.Errorf("local geo lookup failed: empty data")
	}

	c.cache.Set(ip, &apiResp)
	return &apiResp, nil
}

// GetProviderName returns the provider name
func (c *LocalGeoClient) GetProviderName() string {
	return "local-geo"
}
