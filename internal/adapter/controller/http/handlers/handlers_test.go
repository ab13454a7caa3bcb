package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/controller/ws"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/config"
	"github.com/kr1s57/netlens/internal/entity"
	"github.com/kr1s57/netlens/internal/usecase/netwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks
// =============================================================================

type fakeRunner struct {
	result entity.RunResult
}

func (f fakeRunner) RunWithWatchdog(ctx context.Context) entity.RunResult {
	return f.result
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastToTopic(topic, msgType string, payload interface{}) bool {
	return m.Called(topic, msgType, payload).Bool(0)
}

type MockEmailTester struct {
	mock.Mock
}

func (m *MockEmailTester) SendTest(ctx context.Context, recipients []string) error {
	return m.Called(ctx, recipients).Error(0)
}

type staticSinks []string

func (s staticSinks) SinkNames() []string { return s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var panelResult = entity.RunResult{
	Kind:  entity.ResultReport,
	Panel: &entity.PanelPayload{Title: "Proxy-JP", Content: "IP 風險：12% 極度純淨 IP", IconColor: "#0D6E3D"},
}

// recordingFactory captures the config each run was built with
func recordingFactory(result entity.RunResult, seen *config.Config) RunnerFactory {
	return func(cfg config.Config) (Runner, error) {
		*seen = cfg
		return fakeRunner{result: result}, nil
	}
}

func baseConfig() config.Config {
	return config.Config{Run: config.RunConfig{Mode: entity.TriggerEvent, Timeout: 28 * time.Second}}
}

// =============================================================================
// Panel
// =============================================================================

func TestGetPanel_ForcesDisplayMode(t *testing.T) {
	var seen config.Config
	hub := new(MockBroadcaster)
	hub.On("BroadcastToTopic", ws.TopicPanel, "panel_update", panelResult.Panel).Return(true)

	h := NewPanelHandler(baseConfig(), recordingFactory(panelResult, &seen), hub, discardLogger())

	rec := httptest.NewRecorder()
	h.GetPanel(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panel?argument=lang%3Dlocal", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.TriggerPanel, seen.Run.Mode)
	assert.Equal(t, entity.GeoLanguageLocal, seen.Run.Language)
	assert.Contains(t, rec.Body.String(), `"title":"Proxy-JP"`)
	assert.Contains(t, rec.Body.String(), `"icon-color":"#0D6E3D"`)
	hub.AssertExpectations(t)
}

func TestGetPanel_KeepsRequestMode(t *testing.T) {
	var seen config.Config
	h := NewPanelHandler(baseConfig(), recordingFactory(panelResult, &seen), nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetPanel(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panel?argument=mode%3Drequest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.TriggerRequest, seen.Run.Mode)
}

func TestGetPanel_YAML(t *testing.T) {
	var seen config.Config
	h := NewPanelHandler(baseConfig(), recordingFactory(panelResult, &seen), nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetPanel(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panel?format=yaml", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "kind: report")
	assert.Contains(t, rec.Body.String(), "title: Proxy-JP")
}

func TestGetPanel_InvalidArgument(t *testing.T) {
	var seen config.Config
	h := NewPanelHandler(baseConfig(), recordingFactory(panelResult, &seen), nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetPanel(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panel?argument=delay%3Dsoon", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid argument")
}

func TestGetPanel_FactoryError(t *testing.T) {
	factory := func(cfg config.Config) (Runner, error) {
		return nil, errors.New("bad probe pattern")
	}
	h := NewPanelHandler(baseConfig(), factory, nil, discardLogger())

	rec := httptest.NewRecorder()
	h.GetPanel(rec, httptest.NewRequest(http.MethodGet, "/api/v1/panel", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNetworkChanged_ForcesEventModeAndSkipsBroadcast(t *testing.T) {
	var seen config.Config
	silent := entity.RunResult{Kind: entity.ResultSilent}
	hub := new(MockBroadcaster)

	base := baseConfig()
	base.Run.Mode = entity.TriggerPanel
	h := NewPanelHandler(base, recordingFactory(silent, &seen), hub, discardLogger())

	rec := httptest.NewRecorder()
	h.NetworkChanged(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events/network-change", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.TriggerEvent, seen.Run.Mode)
	assert.Contains(t, rec.Body.String(), `"kind":"silent"`)
	hub.AssertNotCalled(t, "BroadcastToTopic", mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Notifications
// =============================================================================

func TestSendTestEmail_NotConfigured(t *testing.T) {
	h := NewNotificationHandler(staticSinks{"log"}, nil)

	rec := httptest.NewRecorder()
	h.SendTestEmail(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notifications/test-email", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSendTestEmail_SplitsRecipients(t *testing.T) {
	email := new(MockEmailTester)
	email.On("SendTest", mock.Anything, []string{"a@example.com", "b@example.com"}).Return(nil)

	h := NewNotificationHandler(staticSinks{"log", "smtp"}, email)

	body := strings.NewReader(`{"recipients":["a@example.com, b@example.com"]}`)
	rec := httptest.NewRecorder()
	h.SendTestEmail(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notifications/test-email", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	email.AssertExpectations(t)
}

func TestSendTestEmail_Failure(t *testing.T) {
	email := new(MockEmailTester)
	email.On("SendTest", mock.Anything, []string(nil)).Return(errors.New("535 auth failed"))

	h := NewNotificationHandler(staticSinks{"log", "smtp"}, email)

	rec := httptest.NewRecorder()
	h.SendTestEmail(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notifications/test-email", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "535 auth failed")
}

func TestGetStatus(t *testing.T) {
	h := NewNotificationHandler(staticSinks{"log", "websocket"}, nil)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sinks":["log","websocket"]`)
	assert.Contains(t, rec.Body.String(), `"smtp_configured":false`)
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	handler := HealthCheck(HealthSources{
		Environment: "development",
		Store:       store,
		Sinks:       staticSinks{"log"},
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"healthy"`)
	assert.Contains(t, body, `"in_memory":true`)
	assert.Contains(t, body, `"offline_geo":"disabled"`)
	assert.Contains(t, body, `"sink_log":"ok"`)
}

func TestHealthCheck_NoStoreIsDegraded(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(HealthSources{})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

// =============================================================================
// Watcher
// =============================================================================

type staticWatch netwatch.Stats

func (s staticWatch) GetStats() netwatch.Stats { return netwatch.Stats(s) }

func TestWatchStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WatchStatus(staticWatch{Running: true, Checks: 3})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/watch/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":true`)
	assert.Contains(t, rec.Body.String(), `"checks":3`)
}

func TestWatchStatus_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	WatchStatus(nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/watch/stats", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
