package entity

// PanelPayload is the structured result consumed by the host panel
type PanelPayload struct {
	Title     string `json:"title" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
	Icon      string `json:"icon" yaml:"icon"`
	IconColor string `json:"icon-color" yaml:"icon-color"`
}

// ResultKind enumerates the terminal outcomes of a run
type ResultKind string

const (
	ResultReport            ResultKind = "report"
	ResultNotified          ResultKind = "notified"
	ResultSilent            ResultKind = "silent"
	ResultAcquisitionFailed ResultKind = "acquisition_failed"
	ResultTimeout           ResultKind = "timeout"
)

// RunResult is the single terminal result of one invocation
type RunResult struct {
	Kind         ResultKind    `json:"kind" yaml:"kind"`
	Panel        *PanelPayload `json:"panel,omitempty" yaml:"panel,omitempty"`
	Notification *Notification `json:"notification,omitempty" yaml:"notification,omitempty"`
}

// Report is the reconciled view of the current network path
type Report struct {
	Mode       TriggerMode      `json:"mode"`
	Language   GeoLanguage      `json:"language"`
	Addresses  Addresses        `json:"addresses"`
	Policy     string           `json:"policy"`
	Risk       RiskAssessment   `json:"risk"`
	IPType     IPTypeAssessment `json:"ip_type"`
	Inbound    GeoRecord        `json:"inbound_geo"`
	Outbound   GeoRecord        `json:"outbound_geo"`
	OutboundV6 *GeoRecord       `json:"outbound_v6_geo,omitempty"`
}
