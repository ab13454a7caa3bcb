package netreport

import (
	"fmt"
	"strings"
	"time"

	"github.com/kr1s57/netlens/internal/domain/scoring"
	"github.com/kr1s57/netlens/internal/entity"
	"github.com/kr1s57/netlens/internal/usecase/geoenrich"
)

const (
	TitleAcquisitionFailed = "網路資訊取得失敗"
	TitleTimeout           = "網路資訊查詢逾時"

	IconReport  = "globe.asia.australia.fill"
	IconFailure = "exclamationmark.triangle.fill"
	IconTimeout = "clock.badge.exclamationmark.fill"

	ColorFailure = "#F44336"
	ColorTimeout = "#FF9800"

	unknownText = "未知"
)

// Renderer turns reports and failures into terminal results
type Renderer struct {
	lang  entity.GeoLanguage
	tiers *scoring.TierTable
	flags *scoring.FlagMapper
}

// NewRenderer creates a renderer for one language mode
func NewRenderer(lang entity.GeoLanguage, tiers *scoring.TierTable, flags *scoring.FlagMapper) *Renderer {
	return &Renderer{lang: lang, tiers: tiers, flags: flags}
}

// Report renders a complete report. Display modes get a panel payload,
// event mode gets a notification draft.
func (r *Renderer) Report(report entity.Report) entity.RunResult {
	tier := r.tiers.Classify(report.Risk.Score)
	content := strings.Join(r.Lines(report), "\n")

	if report.Mode.IsEvent() {
		return entity.RunResult{
			Kind: entity.ResultNotified,
			Notification: &entity.Notification{
				Title:    report.Policy,
				Subtitle: fmt.Sprintf("入口 %s → 出口 %s", report.Addresses.Inbound.Address, report.Addresses.OutboundV4.Address),
				Body:     content,
			},
		}
	}

	return entity.RunResult{
		Kind: entity.ResultReport,
		Panel: &entity.PanelPayload{
			Title:     report.Policy,
			Content:   content,
			Icon:      IconReport,
			IconColor: tier.Color,
		},
	}
}

// AcquisitionFailed renders the result for a run that found no outbound v4
func (r *Renderer) AcquisitionFailed(mode entity.TriggerMode) entity.RunResult {
	return failure(mode, entity.ResultAcquisitionFailed, TitleAcquisitionFailed,
		"無法取得出口 IP，請檢查網路連線", IconFailure, ColorFailure)
}

// Timeout renders the watchdog result
func (r *Renderer) Timeout(mode entity.TriggerMode, after time.Duration) entity.RunResult {
	return failure(mode, entity.ResultTimeout, TitleTimeout,
		fmt.Sprintf("查詢超過 %d 秒，請稍後再試", int(after.Seconds())), IconTimeout, ColorTimeout)
}

func failure(mode entity.TriggerMode, kind entity.ResultKind, title, body, icon, color string) entity.RunResult {
	if mode.IsEvent() {
		return entity.RunResult{
			Kind:         kind,
			Notification: &entity.Notification{Title: title, Body: body},
		}
	}
	return entity.RunResult{
		Kind:  kind,
		Panel: &entity.PanelPayload{Title: title, Content: body, Icon: icon, IconColor: color},
	}
}

// Lines builds the content lines of a report
func (r *Renderer) Lines(report entity.Report) []string {
	addrs := report.Addresses
	tier := r.tiers.Classify(report.Risk.Score)

	lines := []string{
		fmt.Sprintf("IP 風險：%d%% %s", report.Risk.Score, tier.Label),
		"IP 類型：" + ipTypeText(report.IPType),
		"入口 IP：" + addrs.Inbound.Address,
		"出口 IPv4：" + addrs.OutboundV4.Address,
	}
	if addrs.HasIPv6() {
		lines = append(lines, "出口 IPv6："+addrs.OutboundV6.Address)
	}

	lines = append(lines,
		"入口位置："+r.Location(report.Inbound),
		"入口運營商："+orUnknown(report.Inbound.GetCarrier()),
	)

	if report.OutboundV6 == nil || geoenrich.SamePath(report.Outbound, *report.OutboundV6) {
		lines = append(lines,
			"出口位置："+r.Location(report.Outbound),
			"出口運營商："+orUnknown(report.Outbound.GetCarrier()),
		)
		return lines
	}

	return append(lines,
		"出口位置⁴："+r.Location(report.Outbound),
		"出口運營商⁴："+orUnknown(report.Outbound.GetCarrier()),
		"出口位置⁶："+r.Location(*report.OutboundV6),
		"出口運營商⁶："+orUnknown(report.OutboundV6.GetCarrier()),
	)
}

// Location renders "flag country · region city", dropping absent parts
func (r *Renderer) Location(rec entity.GeoRecord) string {
	var head []string
	if flag := r.flags.Flag(rec.GetCountryCode()); flag != "" {
		head = append(head, flag)
	}
	if country := geoenrich.CountryDisplay(r.lang, rec); country != "" {
		head = append(head, country)
	}

	var tail []string
	if region := rec.GetRegion(); region != "" {
		tail = append(tail, region)
	}
	if city := rec.GetCity(); city != "" && city != rec.GetRegion() {
		tail = append(tail, city)
	}

	switch {
	case len(head) == 0 && len(tail) == 0:
		return unknownText
	case len(tail) == 0:
		return strings.Join(head, " ")
	case len(head) == 0:
		return strings.Join(tail, " ")
	default:
		return strings.Join(head, " ") + " · " + strings.Join(tail, " ")
	}
}

func ipTypeText(t entity.IPTypeAssessment) string {
	var residential, broadcast string
	switch t.IsResidential {
	case entity.True:
		residential = "住宅 IP"
	case entity.False:
		residential = "機房 IP"
	default:
		residential = unknownText
	}
	switch t.IsBroadcast {
	case entity.True:
		broadcast = "廣播 IP"
	case entity.False:
		broadcast = "原生 IP"
	default:
		broadcast = unknownText
	}
	return residential + " · " + broadcast
}

func orUnknown(s string) string {
	if s == "" {
		return unknownText
	}
	return s
}
