package entity

// RiskSource identifies which tier produced a risk score
type RiskSource string

const (
	RiskSourceIPQS        RiskSource = "IPQS"
	RiskSourceProxyCheck  RiskSource = "ProxyCheck"
	RiskSourceScamalytics RiskSource = "Scamalytics"
	RiskSourceDefault     RiskSource = "Default"
)

// DefaultRiskScore is reported when every tier is exhausted
const DefaultRiskScore = 50

// RiskAssessment is the resolved fraud/risk score for the egress address
type RiskAssessment struct {
	Score  int        `json:"score"`
	Source RiskSource `json:"source"`
	// FromCache is set when the value was served from the persisted entry
	FromCache bool `json:"from_cache"`
}

// RiskCacheEntry is the persisted single-scalar risk cache
type RiskCacheEntry struct {
	Address string     `json:"address"`
	Score   int        `json:"score"`
	Source  RiskSource `json:"source"`
}

// ClampScore bounds a provider score to 0..100
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// Tristate is a boolean that may be unknown
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a known boolean
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// String renders the tristate for logs and JSON
func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tristate as text
func (t Tristate) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IPTypeAssessment classifies the egress address
type IPTypeAssessment struct {
	IsResidential Tristate `json:"is_residential"`
	IsBroadcast   Tristate `json:"is_broadcast"`
}

// UnknownIPType is returned when no tier produced data
var UnknownIPType = IPTypeAssessment{IsResidential: Unknown, IsBroadcast: Unknown}
