package handlers

import (
	"net/http"

	"github.com/kr1s57/netlens/internal/usecase/netwatch"
)

// WatchStats reports on the background watcher
type WatchStats interface {
	GetStats() netwatch.Stats
}

// WatchStatus returns the watcher statistics, or 404 when it is disabled
// GET /api/v1/watch/stats
func WatchStatus(watcher WatchStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if watcher == nil {
			ErrorResponse(w, http.StatusNotFound, "Watcher disabled", nil)
			return
		}
		JSONResponse(w, http.StatusOK, watcher.GetStats())
	}
}
