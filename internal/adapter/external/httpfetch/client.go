package httpfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PolicyDirect bypasses the proxy and reaches providers from the local network
const PolicyDirect = "DIRECT"

// maxBodySize caps provider responses; HTML scrape targets are the largest
const maxBodySize = 2 << 20

// Fetcher is the HTTP capability consumed by provider adapters
type Fetcher interface {
	FetchJSON(ctx context.Context, req Request, out any) error
	FetchText(ctx context.Context, req Request) (string, error)
}

// Request describes a single provider call
type Request struct {
	URL     string
	Headers map[string]string
	// Policy overrides the routing policy; empty uses the default route
	Policy string
}

// Config holds HTTP fetch configuration
type Config struct {
	// ProxyURL routes default traffic through a local proxy; empty falls back
	// to the environment (HTTPS_PROXY etc.)
	ProxyURL  string
	Timeout   time.Duration
	RateLimit int // requests per second
	UserAgent string
}

// Client performs policy-aware provider fetches
type Client struct {
	direct    *http.Client
	routed    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a new fetch client
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	}

	proxy := http.ProxyFromEnvironment
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	directTransport := http.DefaultTransport.(*http.Transport).Clone()
	directTransport.Proxy = nil

	routedTransport := http.DefaultTransport.(*http.Transport).Clone()
	routedTransport.Proxy = proxy

	return &Client{
		direct:    &http.Client{Timeout: cfg.Timeout, Transport: directTransport},
		routed:    &http.Client{Timeout: cfg.Timeout, Transport: routedTransport},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

// FetchText returns the raw response body
func (c *Client) FetchText(ctx context.Context, req Request) (string, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchJSON decodes the response body into out. Any decode failure is an
// error; callers treat it the same as a transport failure.
func (c *Client) FetchJSON(ctx context.Context, req Request, out any) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	client := c.routed
	if strings.EqualFold(r.Policy, PolicyDirect) {
		client = c.direct
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Provider response",
		"host", req.URL.Host,
		"status", resp.StatusCode,
		"policy", r.Policy,
		"duration", time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
