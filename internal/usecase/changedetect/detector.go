// Package changedetect decides whether the address tuple differs from the
// one seen on the previous event-mode run.
package changedetect

import (
	"context"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the persisted state holding the last snapshot
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Detector compares address tuples against the persisted snapshot
type Detector struct {
	store  Store
	logger *slog.Logger
}

// NewDetector creates a new change detector
func NewDetector(store Store, logger *slog.Logger) *Detector {
	return &Detector{store: store, logger: logger}
}

// HasChanged reports whether addrs differ from the last snapshot. A missing
// or malformed snapshot counts as a change. The snapshot is rewritten only
// when it changed, so calling it twice with the same tuple reports false
// the second time.
func (d *Detector) HasChanged(ctx context.Context, addrs entity.Addresses) bool {
	current := addrs.Snapshot()

	previous, ok := d.load(ctx)
	if ok && previous.Equal(current) {
		return false
	}

	d.save(ctx, current)
	return true
}

// Last returns the persisted snapshot, if any
func (d *Detector) Last(ctx context.Context) (entity.NetworkSnapshot, bool) {
	return d.load(ctx)
}

func (d *Detector) load(ctx context.Context) (entity.NetworkSnapshot, bool) {
	raw, ok, err := d.store.Get(ctx, kvstore.KeyLastSnapshot)
	if err != nil {
		d.logger.Warn("Failed to read last snapshot", "error", err)
		return entity.NetworkSnapshot{}, false
	}
	if !ok {
		return entity.NetworkSnapshot{}, false
	}

	var snap entity.NetworkSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		d.logger.Debug("Ignoring malformed snapshot", "error", err)
		return entity.NetworkSnapshot{}, false
	}
	return snap, true
}

func (d *Detector) save(ctx context.Context, snap entity.NetworkSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		d.logger.Warn("Failed to encode snapshot", "error", err)
		return
	}
	if err := d.store.Set(ctx, kvstore.KeyLastSnapshot, string(data)); err != nil {
		d.logger.Warn("Failed to persist snapshot", "error", err)
	}
}
