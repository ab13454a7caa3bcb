package entity

// AddressRecord is a single public address observed for the current path
type AddressRecord struct {
	Address string `json:"address"`
	IsIPv6  bool   `json:"is_ipv6"`
}

// Addresses holds the ingress/egress tuple produced by IP acquisition
type Addresses struct {
	Inbound    AddressRecord  `json:"inbound"`
	OutboundV4 AddressRecord  `json:"outbound_v4"`
	OutboundV6 *AddressRecord `json:"outbound_v6,omitempty"`
}

// HasIPv6 reports whether an outbound v6 address was resolved
func (a Addresses) HasIPv6() bool {
	return a.OutboundV6 != nil && a.OutboundV6.Address != ""
}

// Snapshot converts the tuple into its persisted comparison form
func (a Addresses) Snapshot() NetworkSnapshot {
	snap := NetworkSnapshot{
		Inbound:    a.Inbound.Address,
		OutboundV4: a.OutboundV4.Address,
	}
	if a.HasIPv6() {
		v6 := a.OutboundV6.Address
		snap.OutboundV6 = &v6
	}
	return snap
}

// NetworkSnapshot is the last-seen address tuple persisted in event mode
type NetworkSnapshot struct {
	Inbound    string  `json:"inbound"`
	OutboundV4 string  `json:"outbound_v4"`
	OutboundV6 *string `json:"outbound_v6"`
}

// Equal compares field by field. An absent v6 only equals another absent v6.
func (s NetworkSnapshot) Equal(other NetworkSnapshot) bool {
	if s.Inbound != other.Inbound || s.OutboundV4 != other.OutboundV4 {
		return false
	}
	if s.OutboundV6 == nil || other.OutboundV6 == nil {
		return s.OutboundV6 == nil && other.OutboundV6 == nil
	}
	return *s.OutboundV6 == *other.OutboundV6
}

// PolicyAssignment names the routing policy that carried the probe requests
type PolicyAssignment struct {
	Name string `json:"name"`
}

// UnknownPolicy is reported when no policy was ever discovered
const UnknownPolicy = "Unknown"

// TriggerMode distinguishes how the run was invoked
type TriggerMode string

const (
	TriggerPanel   TriggerMode = "panel"
	TriggerRequest TriggerMode = "request"
	TriggerEvent   TriggerMode = "event"
)

// IsEvent reports whether the run was caused by a network-change signal
func (m TriggerMode) IsEvent() bool {
	return m != TriggerPanel && m != TriggerRequest
}

// ParseTriggerMode maps host input to a mode, defaulting to event
func ParseTriggerMode(s string) TriggerMode {
	switch TriggerMode(s) {
	case TriggerPanel:
		return TriggerPanel
	case TriggerRequest:
		return TriggerRequest
	default:
		return TriggerEvent
	}
}
