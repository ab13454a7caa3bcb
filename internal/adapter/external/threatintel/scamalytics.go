package threatintel

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// fraudScorePattern extracts the score from the Scamalytics HTML report
var fraudScorePattern = regexp.MustCompile(`Fraud Score[^0-9]{0,40}?(\d{1,3})`)

// ScamalyticsClient scrapes the public Scamalytics IP report page
type ScamalyticsClient struct {
	baseURL string
	fetcher httpfetch.Fetcher
}

// ScamalyticsConfig holds Scamalytics client configuration
type ScamalyticsConfig struct {
	BaseURL string
}

// NewScamalyticsClient creates a new Scamalytics client
func NewScamalyticsClient(cfg ScamalyticsConfig, fetcher httpfetch.Fetcher) *ScamalyticsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://scamalytics.com/ip"
	}
	return &ScamalyticsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fetcher: fetcher,
	}
}

// ScamalyticsResult represents the processed result
type ScamalyticsResult struct {
	IP         string `json:"ip"`
	FraudScore int    `json:"fraud_score"`
}

// CheckIP fetches the report page for ip and extracts the fraud score
func (c *ScamalyticsClient) CheckIP(ctx context.Context, ip string) (*ScamalyticsResult, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(ip))

	body, err := c.fetcher.FetchText(ctx, httpfetch.Request{URL: reqURL})
	if err != nil {
		return nil, err
	}

	score, ok := ExtractFraudScore(body)
	if !ok {
		return nil, fmt.Errorf("Scamalytics page has no fraud score")
	}

	return &ScamalyticsResult{IP: ip, FraudScore: score}, nil
}

// ExtractFraudScore finds "Fraud Score" followed by one to three digits
func ExtractFraudScore(body string) (int, bool) {
	m := fraudScorePattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return score, true
}

// GetProviderName returns the provider name
func (c *ScamalyticsClient) GetProviderName() string {
	return "Scamalytics"
}
