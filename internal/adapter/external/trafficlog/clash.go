package trafficlog

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
)

// ClashClient reads /connections from a Clash (mihomo) external controller
type ClashClient struct {
	baseURL string
	secret  string
	fetcher httpfetch.Fetcher
}

// ClashConfig holds external controller settings
type ClashConfig struct {
	BaseURL string
	Secret  string
}

// NewClashClient creates a new Clash client
func NewClashClient(cfg ClashConfig, fetcher httpfetch.Fetcher) *ClashClient {
	return &ClashClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		fetcher: fetcher,
	}
}

type clashConnectionsResponse struct {
	Connections []clashConnection `json:"connections"`
}

type clashConnection struct {
	ID       string        `json:"id"`
	Metadata clashMetadata `json:"metadata"`
	Start    time.Time     `json:"start"`
	Chains   []string      `json:"chains"`
	Rule     string        `json:"rule"`
}

type clashMetadata struct {
	Network         string `json:"network"`
	Type            string `json:"type"`
	Host            string `json:"host"`
	SniffHost       string `json:"sniffHost"`
	DestinationIP   string `json:"destinationIP"`
	DestinationPort string `json:"destinationPort"`
}

// RecentRequests returns the active connections sorted newest first. The
// policy is the outermost group, the last element of the chain.
func (c *ClashClient) RecentRequests(ctx context.Context, limit int) ([]RecentRequest, error) {
	req := httpfetch.Request{
		URL:    c.baseURL + "/connections",
		Policy: httpfetch.PolicyDirect,
	}
	if c.secret != "" {
		req.Headers = map[string]string{"Authorization": "Bearer " + c.secret}
	}

	var resp clashConnectionsResponse
	if err := c.fetcher.FetchJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("clash connections: %w", err)
	}

	sort.SliceStable(resp.Connections, func(i, j int) bool {
		return resp.Connections[i].Start.After(resp.Connections[j].Start)
	})

	out := make([]RecentRequest, 0, len(resp.Connections))
	for _, conn := range resp.Connections {
		if len(conn.Chains) == 0 {
			continue
		}
		out = append(out, RecentRequest{
			URL:       conn.Metadata.target(),
			Policy:    conn.Chains[len(conn.Chains)-1],
			StartedAt: conn.Start,
		})
	}
	return truncate(out, limit), nil
}

// Name returns the backend name
func (c *ClashClient) Name() string {
	return "clash"
}

func (m clashMetadata) target() string {
	host := m.Host
	if host == "" {
		host = m.SniffHost
	}
	if host == "" {
		host = m.DestinationIP
	}
	if m.DestinationPort == "" {
		return host
	}
	return net.JoinHostPort(host, m.DestinationPort)
}
