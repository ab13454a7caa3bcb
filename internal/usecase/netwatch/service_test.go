package netwatch

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kr1s57/netlens/internal/entity"
	"github.com/stretchr/testify/assert"
)

type scriptedRunner struct {
	results []entity.RunResult
	calls   atomic.Int32
}

func (r *scriptedRunner) RunWithWatchdog(ctx context.Context) entity.RunResult {
	i := int(r.calls.Add(1)) - 1
	if i >= len(r.results) {
		return entity.RunResult{Kind: entity.ResultSilent}
	}
	return r.results[i]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notified(title string) entity.RunResult {
	return entity.RunResult{Kind: entity.ResultNotified, Notification: &entity.Notification{Title: title}}
}

func TestCheck_CountsOutcomes(t *testing.T) {
	runner := &scriptedRunner{results: []entity.RunResult{
		{Kind: entity.ResultSilent},
		notified("Proxy-JP"),
	}}
	svc := NewService(Config{PollInterval: time.Minute}, runner, discardLogger())

	assert.Equal(t, entity.ResultSilent, svc.Check(context.Background()))
	assert.Equal(t, entity.ResultNotified, svc.Check(context.Background()))

	stats := svc.GetStats()
	assert.Equal(t, int64(2), stats.Checks)
	assert.Equal(t, int64(1), stats.Changes)
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, entity.ResultNotified, stats.LastResult)
	assert.False(t, stats.LastChange.IsZero())
}

func TestCheck_CooldownSkipsRun(t *testing.T) {
	runner := &scriptedRunner{results: []entity.RunResult{notified("Proxy-JP")}}
	svc := NewService(Config{PollInterval: time.Minute, Cooldown: time.Hour}, runner, discardLogger())

	svc.Check(context.Background())
	kind := svc.Check(context.Background())

	assert.Equal(t, entity.ResultKind(""), kind)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestCheck_FailuresAreCounted(t *testing.T) {
	runner := &scriptedRunner{results: []entity.RunResult{{Kind: entity.ResultAcquisitionFailed}}}
	svc := NewService(Config{PollInterval: time.Minute}, runner, discardLogger())

	svc.Check(context.Background())

	assert.Equal(t, int64(1), svc.GetStats().Failures)
}

func TestStart_PollsUntilCancelled(t *testing.T) {
	runner := &scriptedRunner{}
	svc := NewService(Config{PollInterval: 10 * time.Millisecond}, runner, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, svc.IsRunning())

	cancel()
	<-done
	assert.False(t, svc.IsRunning())
}

func TestNewService_DefaultsWithoutInterval(t *testing.T) {
	svc := NewService(Config{}, &scriptedRunner{}, discardLogger())
	assert.Equal(t, DefaultConfig().PollInterval, svc.GetStats().PollInterval)
}
