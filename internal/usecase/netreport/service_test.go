package netreport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kr1s57/netlens/internal/adapter/external/threatintel"
	"github.com/kr1s57/netlens/internal/adapter/repository/kvstore"
	"github.com/kr1s57/netlens/internal/entity"
	"github.com/kr1s57/netlens/internal/usecase/acquisition"
	"github.com/kr1s57/netlens/internal/usecase/changedetect"
	"github.com/kr1s57/netlens/internal/usecase/geoenrich"
	"github.com/kr1s57/netlens/internal/usecase/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks and stubs
// =============================================================================

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, title, subtitle, body string) *entity.Notification {
	args := m.Called(ctx, title, subtitle, body)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.Notification)
}

type stubAcquirer struct {
	addrs entity.Addresses
	err   error
	// block makes Acquire wait for cancellation
	block bool
}

func (s *stubAcquirer) Acquire(ctx context.Context) (entity.Addresses, error) {
	if s.block {
		<-ctx.Done()
		return entity.Addresses{}, ctx.Err()
	}
	return s.addrs, s.err
}

type stubPolicy string

func (p stubPolicy) Discover(ctx context.Context) entity.PolicyAssignment {
	return entity.PolicyAssignment{Name: string(p)}
}

type stubRisk entity.RiskAssessment

func (r stubRisk) Resolve(ctx context.Context, address string) entity.RiskAssessment {
	return entity.RiskAssessment(r)
}

type stubIPType entity.IPTypeAssessment

func (t stubIPType) Resolve(ctx context.Context) entity.IPTypeAssessment {
	return entity.IPTypeAssessment(t)
}

// stubGeo answers per address
type stubGeo map[string]entity.GeoRecord

func (g stubGeo) Enrich(ctx context.Context, lang entity.GeoLanguage, role geoenrich.Role, ip string) entity.GeoRecord {
	return g[ip]
}

type deadProxyCheck struct{}

func (deadProxyCheck) CheckIP(ctx context.Context, ip string) (*threatintel.ProxyCheckResult, error) {
	return nil, errors.New("connection refused")
}

func (deadProxyCheck) GetProviderName() string { return "ProxyCheck" }

type deadScamalytics struct{}

func (deadScamalytics) CheckIP(ctx context.Context, ip string) (*threatintel.ScamalyticsResult, error) {
	return nil, errors.New("no score in page")
}

func (deadScamalytics) GetProviderName() string { return "Scamalytics" }

// =============================================================================
// Helpers
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *kvstore.Store {
	t.Helper()
	s, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(code, carrier string) entity.GeoRecord {
	return entity.GeoRecord{
		CountryCode: entity.OptionalString(code),
		Carrier:     entity.OptionalString(carrier),
		Region:      entity.OptionalString("California"),
		City:        entity.OptionalString("San Jose"),
	}
}

func dualStack(v6 string) entity.Addresses {
	return entity.Addresses{
		Inbound:    entity.AddressRecord{Address: "1.1.1.1"},
		OutboundV4: entity.AddressRecord{Address: "2.2.2.2"},
		OutboundV6: &entity.AddressRecord{Address: v6, IsIPv6: true},
	}
}

func singleStack() entity.Addresses {
	return entity.Addresses{
		Inbound:    entity.AddressRecord{Address: "1.1.1.1"},
		OutboundV4: entity.AddressRecord{Address: "2.2.2.2"},
	}
}

func panelConfig() Config {
	return Config{Mode: entity.TriggerPanel, Language: entity.GeoLanguagePrimary, Timeout: time.Second}
}

// =============================================================================
// Display mode
// =============================================================================

func TestRun_SingleStackReport(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: singleStack()},
		Policy:   stubPolicy("Proxy-JP"),
		Risk:     stubRisk{Score: 12, Source: entity.RiskSourceIPQS},
		IPType:   stubIPType{IsResidential: entity.True, IsBroadcast: entity.False},
		Geo: stubGeo{
			"1.1.1.1": record("CN", "China Telecom"),
			"2.2.2.2": record("JP", "KDDI"),
		},
	}, discardLogger())

	result := svc.Run(context.Background())

	require.Equal(t, entity.ResultReport, result.Kind)
	require.NotNil(t, result.Panel)
	assert.Nil(t, result.Notification)
	assert.Equal(t, "Proxy-JP", result.Panel.Title)
	assert.Equal(t, "#0D6E3D", result.Panel.IconColor)
	assert.Equal(t, IconReport, result.Panel.Icon)

	content := result.Panel.Content
	assert.Contains(t, content, "IP 風險：12% 極度純淨 IP")
	assert.Contains(t, content, "IP 類型：住宅 IP · 原生 IP")
	assert.Contains(t, content, "入口 IP：1.1.1.1")
	assert.Contains(t, content, "出口 IPv4：2.2.2.2")
	assert.NotContains(t, content, "IPv6")
	assert.Contains(t, content, "出口位置：🇯🇵 JP · California San Jose")
	assert.Contains(t, content, "出口運營商：KDDI")
	assert.Contains(t, content, "入口運營商：China Telecom")
}

func TestRun_DualStackSamePathCollapses(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: dualStack("2001:db8::1")},
		Policy:   stubPolicy("Proxy-US"),
		Risk:     stubRisk{Score: 30, Source: entity.RiskSourceProxyCheck},
		IPType:   stubIPType(entity.UnknownIPType),
		Geo: stubGeo{
			"2.2.2.2":     record("US", "Acme Net"),
			"2001:db8::1": record("US", "Acme Net"),
		},
	}, discardLogger())

	result := svc.Run(context.Background())
	require.NotNil(t, result.Panel)

	content := result.Panel.Content
	assert.Contains(t, content, "出口 IPv6：2001:db8::1")
	assert.Equal(t, 1, strings.Count(content, "出口位置"))
	assert.NotContains(t, content, "⁴")
	assert.NotContains(t, content, "⁶")
	assert.Contains(t, content, "IP 類型：未知 · 未知")
	assert.Equal(t, "#8BC34A", result.Panel.IconColor)
}

func TestRun_DualStackDifferentPathsSplit(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: dualStack("2001:db8::1")},
		Policy:   stubPolicy("Proxy-Mixed"),
		Risk:     stubRisk{Score: 80, Source: entity.RiskSourceScamalytics},
		Geo: stubGeo{
			"2.2.2.2":     record("US", "Acme Net"),
			"2001:db8::1": record("DE", "Acme Net"),
		},
	}, discardLogger())

	result := svc.Run(context.Background())
	require.NotNil(t, result.Panel)

	content := result.Panel.Content
	assert.Contains(t, content, "出口位置⁴：🇺🇸 US · California San Jose")
	assert.Contains(t, content, "出口運營商⁴：Acme Net")
	assert.Contains(t, content, "出口位置⁶：🇩🇪 DE · California San Jose")
	assert.Contains(t, content, "出口運營商⁶：Acme Net")
	assert.Equal(t, "#F44336", result.Panel.IconColor)
}

func TestRun_MissingComponentsFallBackToSentinels(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: singleStack()},
	}, discardLogger())

	result := svc.Run(context.Background())
	require.NotNil(t, result.Panel)

	assert.Equal(t, entity.UnknownPolicy, result.Panel.Title)
	assert.Contains(t, result.Panel.Content, "IP 風險：50% 微風險 IP")
	assert.Contains(t, result.Panel.Content, "出口位置：未知")
}

func TestRun_AcquisitionFailedPanel(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{err: acquisition.ErrAcquisitionFailed},
	}, discardLogger())

	result := svc.Run(context.Background())

	assert.Equal(t, entity.ResultAcquisitionFailed, result.Kind)
	require.NotNil(t, result.Panel)
	assert.Equal(t, TitleAcquisitionFailed, result.Panel.Title)
	assert.Equal(t, ColorFailure, result.Panel.IconColor)
}

func TestRun_ScoreWithoutCredentialDefaults(t *testing.T) {
	store := newStore(t)
	resolver := risk.NewResolver(store, nil, deadProxyCheck{}, deadScamalytics{}, discardLogger())

	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: singleStack()},
		Risk:     resolver,
	}, discardLogger())

	result := svc.Run(context.Background())
	require.NotNil(t, result.Panel)
	assert.Contains(t, result.Panel.Content, "IP 風險：50% 微風險 IP")
	assert.Equal(t, "#FFC107", result.Panel.IconColor)

	assessment := resolver.Resolve(context.Background(), "2.2.2.2")
	assert.Equal(t, entity.DefaultRiskScore, assessment.Score)
	assert.Equal(t, entity.RiskSourceDefault, assessment.Source)
	assert.True(t, assessment.FromCache)
}

// =============================================================================
// Event mode
// =============================================================================

func eventConfig() Config {
	return Config{Mode: entity.TriggerEvent, Language: entity.GeoLanguagePrimary, Timeout: time.Second}
}

func TestRun_EventModeNotifiesOnceThenStaysSilent(t *testing.T) {
	store := newStore(t)
	notifier := new(MockNotifier)
	sent := &entity.Notification{ID: "n-1", Title: "Proxy-JP"}
	notifier.On("Notify", mock.Anything, "Proxy-JP", "入口 1.1.1.1 → 出口 2.2.2.2", mock.AnythingOfType("string")).
		Return(sent).Once()

	svc := NewService(eventConfig(), Components{
		Acquirer: &stubAcquirer{addrs: singleStack()},
		Detector: changedetect.NewDetector(store, discardLogger()),
		Policy:   stubPolicy("Proxy-JP"),
		Risk:     stubRisk{Score: 12, Source: entity.RiskSourceIPQS},
		Notifier: notifier,
	}, discardLogger())

	first := svc.Run(context.Background())
	assert.Equal(t, entity.ResultNotified, first.Kind)
	assert.Nil(t, first.Panel)
	assert.Same(t, sent, first.Notification)

	second := svc.Run(context.Background())
	assert.Equal(t, entity.ResultSilent, second.Kind)
	assert.Nil(t, second.Panel)
	assert.Nil(t, second.Notification)

	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestRun_EventModeAcquisitionFailureNotifies(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, TitleAcquisitionFailed, "", mock.AnythingOfType("string")).
		Return(&entity.Notification{ID: "n-2", Title: TitleAcquisitionFailed})

	svc := NewService(eventConfig(), Components{
		Acquirer: &stubAcquirer{err: acquisition.ErrAcquisitionFailed},
		Notifier: notifier,
	}, discardLogger())

	result := svc.Run(context.Background())

	assert.Equal(t, entity.ResultAcquisitionFailed, result.Kind)
	require.NotNil(t, result.Notification)
	assert.Equal(t, "n-2", result.Notification.ID)
	notifier.AssertExpectations(t)
}

func TestRun_EventDelayHonoursCancellation(t *testing.T) {
	cfg := eventConfig()
	cfg.EventDelay = time.Hour

	svc := NewService(cfg, Components{Acquirer: &stubAcquirer{addrs: singleStack()}}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Run(ctx)
	assert.Equal(t, entity.ResultTimeout, result.Kind)
}

// =============================================================================
// Watchdog
// =============================================================================

func TestRunWithWatchdog_Timeout(t *testing.T) {
	cfg := panelConfig()
	cfg.Timeout = 50 * time.Millisecond

	svc := NewService(cfg, Components{Acquirer: &stubAcquirer{block: true}}, discardLogger())

	start := time.Now()
	result := svc.RunWithWatchdog(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, entity.ResultTimeout, result.Kind)
	require.NotNil(t, result.Panel)
	assert.Equal(t, TitleTimeout, result.Panel.Title)
}

func TestRunWithWatchdog_TimeoutNotifiesInEventMode(t *testing.T) {
	cfg := eventConfig()
	cfg.Timeout = 50 * time.Millisecond

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, TitleTimeout, "", mock.AnythingOfType("string")).
		Return(&entity.Notification{ID: "n-3", Title: TitleTimeout}).Once()

	svc := NewService(cfg, Components{
		Acquirer: &stubAcquirer{block: true},
		Notifier: notifier,
	}, discardLogger())

	result := svc.RunWithWatchdog(context.Background())

	assert.Equal(t, entity.ResultTimeout, result.Kind)
	notifier.AssertExpectations(t)
}

func TestRunWithWatchdog_CallerCancellationIsNotAnnounced(t *testing.T) {
	cfg := eventConfig()
	cfg.Timeout = time.Hour

	notifier := new(MockNotifier)
	svc := NewService(cfg, Components{
		Acquirer: &stubAcquirer{block: true},
		Notifier: notifier,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	result := svc.RunWithWatchdog(ctx)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, entity.ResultTimeout, result.Kind)
	require.NotNil(t, result.Notification)
	assert.Equal(t, TitleTimeout, result.Notification.Title)
	assert.Empty(t, result.Notification.ID)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CallerCancellationIsNotAnnounced(t *testing.T) {
	notifier := new(MockNotifier)
	svc := NewService(eventConfig(), Components{
		Acquirer: &stubAcquirer{block: true},
		Notifier: notifier,
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Run(ctx)

	assert.Equal(t, entity.ResultTimeout, result.Kind)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunWithWatchdog_FastRunWins(t *testing.T) {
	svc := NewService(panelConfig(), Components{
		Acquirer: &stubAcquirer{addrs: singleStack()},
		Policy:   stubPolicy("DIRECT"),
	}, discardLogger())

	result := svc.RunWithWatchdog(context.Background())

	assert.Equal(t, entity.ResultReport, result.Kind)
	require.NotNil(t, result.Panel)
	assert.Equal(t, "DIRECT", result.Panel.Title)
}
