package threatintel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// Keyword families used to classify the IPPure HTML page (zh/en)
var (
	residentialPattern = regexp.MustCompile(`(?i)住宅|家宽|家寬|Residential`)
	datacenterPattern  = regexp.MustCompile(`(?i)机房|機房|数据中心|數據中心|Hosting|Data ?Center`)
	broadcastPattern   = regexp.MustCompile(`(?i)广播|廣播|Broadcast|Anycast`)
	nativePattern      = regexp.MustCompile(`(?i)原生|Native`)
)

// IPPureClient classifies the egress address as residential/broadcast
type IPPureClient struct {
	infoURL string
	htmlURL string
	fetcher httpfetch.Fetcher
}

// IPPureConfig holds IPPure client configuration
type IPPureConfig struct {
	InfoURL string
	HTMLURL string
}

// NewIPPureClient creates a new IPPure client
func NewIPPureClient(cfg IPPureConfig, fetcher httpfetch.Fetcher) *IPPureClient {
	if cfg.InfoURL == "" {
		cfg.InfoURL = "https://my.ippure.com/v1/info"
	}
	if cfg.HTMLURL == "" {
		cfg.HTMLURL = "https://ippure.com/"
	}
	return &IPPureClient{
		infoURL: cfg.InfoURL,
		htmlURL: cfg.HTMLURL,
		fetcher: fetcher,
	}
}

// IPPureInfo is the structured endpoint response
type IPPureInfo struct {
	IP            string `json:"ip"`
	IsResidential *bool  `json:"isResidential"`
	IsBroadcast   *bool  `json:"isBroadcast"`
	FraudScore    *int   `json:"fraudScore"`
}

// IPPureClassification is the outcome of classifying a page. Nil fields were
// not determined.
type IPPureClassification struct {
	IsResidential *bool
	IsBroadcast   *bool
}

// GetInfo queries the structured endpoint. A payload without the
// isResidential field is an error, whatever else it contains.
func (c *IPPureClient) GetInfo(ctx context.Context) (*IPPureInfo, error) {
	var info IPPureInfo
	if err := c.fetcher.FetchJSON(ctx, httpfetch.Request{URL: c.infoURL}, &info); err != nil {
		return nil, err
	}
	if info.IsResidential == nil {
		return nil, fmt.Errorf("IPPure response missing isResidential")
	}
	return &info, nil
}

// ClassifyPage fetches the HTML page and classifies it by keyword families
func (c *IPPureClient) ClassifyPage(ctx context.Context) (*IPPureClassification, error) {
	body, err := c.fetcher.FetchText(ctx, httpfetch.Request{URL: c.htmlURL})
	if err != nil {
		return nil, err
	}

	result := ClassifyHTML(body)
	if result.IsResidential == nil && result.IsBroadcast == nil {
		return nil, fmt.Errorf("IPPure page has no classification keywords")
	}
	return &result, nil
}

// ClassifyHTML matches the residential and broadcast keyword families.
// Residential keywords win over datacenter ones, broadcast over native.
func ClassifyHTML(body string) IPPureClassification {
	var result IPPureClassification

	switch {
	case residentialPattern.MatchString(body):
		result.IsResidential = boolPtr(true)
	case datacenterPattern.MatchString(body):
		result.IsResidential = boolPtr(false)
	}

	switch {
	case broadcastPattern.MatchString(body):
		result.IsBroadcast = boolPtr(true)
	case nativePattern.MatchString(body):
		result.IsBroadcast = boolPtr(false)
	}

	return result
}

// GetProviderName returns the provider name
func (c *IPPureClient) GetProviderName() string {
	return "IPPure"
}

func boolPtr(b bool) *bool {
	return &b
}
