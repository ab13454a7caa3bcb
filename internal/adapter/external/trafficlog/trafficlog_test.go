package trafficlog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kr1s57/netlens/internal/adapter/external/httpfetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) httpfetch.Fetcher {
	t.Helper()
	c, err := httpfetch.NewClient(httpfetch.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestSurgeClient_RecentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/requests/recent", r.URL.Path)
		assert.Equal(t, "surge-key", r.Header.Get("X-Key"))
		w.Write([]byte(`{"requests":[
			{"id":3,"URL":"https://api.ipify.org/","policyName":"Proxy-JP","startDate":1700000002.5},
			{"id":2,"URL":"https://example.com/","policyName":"DIRECT","startDate":1700000001},
			{"id":1,"URL":"","remoteHost":"old.example:443","policyName":"Proxy-US","startDate":1700000000}
		]}`))
	}))
	defer srv.Close()

	c := NewSurgeClient(SurgeConfig{BaseURL: srv.URL, APIKey: "surge-key"}, newTestFetcher(t))

	reqs, err := c.RecentRequests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Equal(t, "https://api.ipify.org/", reqs[0].URL)
	assert.Equal(t, "Proxy-JP", reqs[0].Policy)
	assert.Equal(t, int64(1700000002), reqs[0].StartedAt.Unix())
	assert.Equal(t, "old.example:443", reqs[2].URL)

	reqs, err = c.RecentRequests(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestSurgeClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewSurgeClient(SurgeConfig{BaseURL: srv.URL}, newTestFetcher(t))
	_, err := c.RecentRequests(context.Background(), 10)
	assert.Error(t, err)
}

func TestClashClient_RecentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connections", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"connections":[
			{"id":"a","metadata":{"host":"example.com","destinationPort":"443"},"start":"2024-05-01T10:00:00Z","chains":["DIRECT"]},
			{"id":"b","metadata":{"host":"api.ipify.org","destinationPort":"443"},"start":"2024-05-01T10:00:05Z","chains":["jp-node-01","Proxy-JP"]},
			{"id":"c","metadata":{"destinationIP":"9.9.9.9","destinationPort":"53"},"start":"2024-05-01T09:59:00Z","chains":[]}
		]}`))
	}))
	defer srv.Close()

	c := NewClashClient(ClashConfig{BaseURL: srv.URL, Secret: "s3cret"}, newTestFetcher(t))

	reqs, err := c.RecentRequests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "api.ipify.org:443", reqs[0].URL)
	assert.Equal(t, "Proxy-JP", reqs[0].Policy)
	assert.Equal(t, "example.com:443", reqs[1].URL)
	assert.Equal(t, "DIRECT", reqs[1].Policy)
}
