package httpfetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_FetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Write([]byte(`{"ip":"2.2.2.2","score":12}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{}, discardLogger())
	require.NoError(t, err)

	var out struct {
		IP    string `json:"ip"`
		Score int    `json:"score"`
	}
	err = c.FetchJSON(context.Background(), Request{
		URL:     srv.URL,
		Headers: map[string]string{"X-Test": "yes"},
		Policy:  PolicyDirect,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "2.2.2.2", out.IP)
	assert.Equal(t, 12, out.Score)
}

func TestClient_FetchJSON_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{}, discardLogger())
	require.NoError(t, err)

	var out map[string]any
	err = c.FetchJSON(context.Background(), Request{URL: srv.URL, Policy: PolicyDirect}, &out)
	assert.Error(t, err)
}

func TestClient_FetchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1.1.1.1\n"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{}, discardLogger())
	require.NoError(t, err)

	body, err := c.FetchText(context.Background(), Request{URL: srv.URL, Policy: PolicyDirect})
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1\n", body)
}

func TestClient_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c, err := NewClient(Config{}, discardLogger())
		require.NoError(t, err)

		_, err = c.FetchText(context.Background(), Request{URL: srv.URL, Policy: PolicyDirect})
		assert.Error(t, err, "status %d", status)
		srv.Close()
	}
}

func TestClient_RoutedThroughProxy(t *testing.T) {
	var proxied bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = true
		w.Write([]byte("via-proxy"))
	}))
	defer proxy.Close()

	c, err := NewClient(Config{ProxyURL: proxy.URL}, discardLogger())
	require.NoError(t, err)

	body, err := c.FetchText(context.Background(), Request{URL: "http://provider.invalid/ip"})
	require.NoError(t, err)
	assert.True(t, proxied)
	assert.Equal(t, "via-proxy", body)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClient(Config{ProxyURL: "://bad"}, discardLogger())
	assert.Error(t, err)
}
