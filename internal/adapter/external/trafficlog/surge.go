package trafficlog

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// SurgeClient reads /v1/requests/recent from the Surge HTTP API
type SurgeClient struct {
	baseURL string
	apiKey  string
	fetcher httpfetch.Fetcher
}

// SurgeConfig holds Surge HTTP API settings
type SurgeConfig struct {
	BaseURL string
	APIKey  string
}

// NewSurgeClient creates a new Surge client
func NewSurgeClient(cfg SurgeConfig, fetcher httpfetch.Fetcher) *SurgeClient {
	return &SurgeClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		fetcher: fetcher,
	}
}

type surgeRecentResponse struct {
	Requests []surgeRequest `json:"requests"`
}

type surgeRequest struct {
	ID         int     `json:"id"`
	URL        string  `json:"URL"`
	PolicyName string  `json:"policyName"`
	RemoteHost string  `json:"remoteHost"`
	StartDate  float64 `json:"startDate"`
}

// RecentRequests returns the newest requests as reported by Surge
func (c *SurgeClient) RecentRequests(ctx context.Context, limit int) ([]RecentRequest, error) {
	req := httpfetch.Request{
		URL:    c.baseURL + "/v1/requests/recent",
		Policy: httpfetch.PolicyDirect,
	}
	if c.apiKey != "" {
		req.Headers = map[string]string{"X-Key": c.apiKey}
	}

	var resp surgeRecentResponse
	if err := c.fetcher.FetchJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("surge recent requests: %w", err)
	}

	out := make([]RecentRequest, 0, len(resp.Requests))
	for _, r := range resp.Requests {
		url := r.URL
		if url == "" {
			url = r.RemoteHost
		}
		out = append(out, RecentRequest{
			URL:       url,
			Policy:    r.PolicyName,
			StartedAt: unixFloat(r.StartDate),
		})
	}
	return truncate(out, limit), nil
}

// Name returns the backend name
func (c *SurgeClient) Name() string {
	return "surge"
}

func unixFloat(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
