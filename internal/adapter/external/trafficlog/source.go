// Package trafficlog reads the recent-request log of the local proxy client
// so the routing policy of a probe request can be recovered.
package trafficlog

import (
	"context"
	"time"
)

// RecentRequest is one entry of the proxy client's request log
type RecentRequest struct {
	URL       string    `json:"url"`
	Policy    string    `json:"policy"`
	StartedAt time.Time `json:"started_at"`
}

// Source lists recent requests, newest first, at most limit entries
type Source interface {
	RecentRequests(ctx context.Context, limit int) ([]RecentRequest, error)
	Name() string
}

func truncate(reqs []RecentRequest, limit int) []RecentRequest {
	if limit > 0 && len(reqs) > limit {
		return reqs[:limit]
	}
	return reqs
}
