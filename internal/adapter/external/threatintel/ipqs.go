package threatintel

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// IPQSClient handles communication with the IPQualityScore reputation API
type IPQSClient struct {
	apiKey  string
	baseURL string
	fetcher httpfetch.Fetcher
}

// IPQSConfig holds IPQS client configuration
type IPQSConfig struct {
	APIKey  string
	BaseURL string
}

// NewIPQSClient creates a new IPQS client
func NewIPQSClient(cfg IPQSConfig, fetcher httpfetch.Fetcher) *IPQSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ipqualityscore.com/api/json/ip"
	}
	return &IPQSClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
	}
}

// IPQSResponse represents the API response for an IP lookup
type IPQSResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FraudScore  *int   `json:"fraud_score"`
	CountryCode string `json:"country_code"`
	ISP         string `json:"ISP"`
	Proxy       bool   `json:"proxy"`
	VPN         bool   `json:"vpn"`
	Tor         bool   `json:"tor"`
}

// IPQSResult represents the processed result
type IPQSResult struct {
	IP         string `json:"ip"`
	FraudScore int    `json:"fraud_score"`
	IsProxy    bool   `json:"is_proxy"`
	IsVPN      bool   `json:"is_vpn"`
	IsTor      bool   `json:"is_tor"`
}

// CheckIP queries IPQS for the fraud score of ip. A response without the
// success flag or without a fraud score is an error.
func (c *IPQSClient) CheckIP(ctx context.Context, ip string) (*IPQSResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("IPQS API key not configured")
	}

	reqURL := fmt.Sprintf("%s/%s/%s?strictness=1&allow_public_access_points=true",
		c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(ip))

	var apiResp IPQSResponse
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: reqURL}, &apiResp); err != nil {
		return nil, err
	}

	if !apiResp.Success {
		return nil, fmt.Errorf("IPQS lookup failed: %s", apiResp.Message)
	}
	if apiResp.FraudScore == nil {
		return nil, fmt.Errorf("IPQS response missing fraud_score")
	}

	return &IPQSResult{
		IP:         ip,
		FraudScore: *apiResp.FraudScore,
		IsProxy:    apiResp.Proxy,
		IsVPN:      apiResp.VPN,
		IsTor:      apiResp.Tor,
	}, nil
}

// GetProviderName returns the provider name
func (c *IPQSClient) GetProviderName() string {
	return "IPQS"
}

// IsConfigured returns true if the client has an API key
func (c *IPQSClient) IsConfigured() bool {
	return c.apiKey != ""
}
