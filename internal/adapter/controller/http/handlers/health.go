package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
)

var startTime = time.Now()

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Uptime      string            `json:"uptime"`
	StartedAt   string            `json:"started_at"`
	Environment string            `json:"environment"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	Store       StoreInfo         `json:"store"`
	System      SystemInfo        `json:"system"`
}

// StoreInfo describes the persisted state
type StoreInfo struct {
	Path     string `json:"path"`
	InMemory bool   `json:"in_memory"`
	Size     string `json:"size"`
}

// SystemInfo represents system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     string `json:"mem_alloc"`
}

// HealthSources are the components the health check reports on
type HealthSources struct {
	Environment string
	Store       interface{ Stats() kvstore.Stats }
	OfflineGeo  interface{ Enabled() bool }
	Clients     interface{ ClientCount() int }
	Sinks       interface{ SinkNames() []string }
}

// HealthCheck returns a handler for health check endpoint
func HealthCheck(src HealthSources) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		checks := map[string]string{
			"api":         "ok",
			"store":       "ok",
			"offline_geo": "disabled",
		}

		var store StoreInfo
		if src.Store == nil {
			checks["store"] = "missing"
		} else {
			stats := src.Store.Stats()
			store = StoreInfo{
				Path:     stats.Path,
				InMemory: stats.InMemory,
				Size:     humanize.Bytes(stats.DiskBytes),
			}
		}
		if src.OfflineGeo != nil && src.OfflineGeo.Enabled() {
			checks["offline_geo"] = "ok"
		}
		if src.Clients != nil {
			checks["ws_clients"] = humanize.Comma(int64(src.Clients.ClientCount()))
		}
		if src.Sinks != nil {
			for _, name := range src.Sinks.SinkNames() {
				checks["sink_"+name] = "ok"
			}
		}

		status := "healthy"
		if checks["store"] != "ok" {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			Version:     "1.0.0",
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			StartedAt:   humanize.Time(startTime),
			Environment: src.Environment,
			Timestamp:   time.Now().UTC(),
			Checks:      checks,
			Store:       store,
			System: SystemInfo{
				GoVersion:    runtime.Version(),
				NumCPU:       runtime.NumCPU(),
				NumGoroutine: runtime.NumGoroutine(),
				MemAlloc:     humanize.IBytes(m.Alloc),
			},
		}

		JSONResponse(w, http.StatusOK, response)
	}
}
