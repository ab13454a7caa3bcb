package geoenrich

import (
	"github.com/kr1s57/netlens/internal/adapter/external/geoip"
	"github.com/kr1s57/netlens/internal/entity"
)

// Role is the address a record describes
type Role string

const (
	RoleInbound    Role = "inbound"
	RoleOutbound   Role = "outbound"
	RoleOutboundV6 Role = "outbound_v6"
)

// ShapesFor lists the provider shapes a language mode needs for a role
func ShapesFor(lang entity.GeoLanguage, role Role) []Shape {
	if lang == entity.GeoLanguageLocal {
		return []Shape{ShapeA, ShapeB, ShapeC}
	}
	if role == RoleInbound {
		return []Shape{ShapeA}
	}
	return []Shape{ShapeA, ShapeB}
}

// Merge reconciles the normalized payloads for one address. Payloads are
// keyed by shape, so arrival order does not matter. Callers pass at most one
// payload per shape; extra ones are ignored.
//
// primary: inbound takes shape A; outbound takes shape B field by field,
// falling back to A.
//
// local: country name, region and city come from C, then B, then A. The
// carrier comes from C when C places the address in homeCountry, else from
// B, then A. The ISO code always comes from B, then A.
//
// offline, when non-nil, fills the ISO code and carrier only if every
// online shape left them absent.
func Merge(lang entity.GeoLanguage, role Role, payloads []ProviderPayload, homeCountry string, offline *geoip.OfflineRecord) entity.GeoRecord {
	byShape := make(map[Shape]*entity.GeoRecord, 3)
	for _, p := range payloads {
		if _, seen := byShape[p.Shape]; seen {
			continue
		}
		if rec := Normalize(p); rec != nil {
			byShape[p.Shape] = rec
		}
	}

	a := orEmpty(byShape[ShapeA])
	b := orEmpty(byShape[ShapeB])
	c := orEmpty(byShape[ShapeC])

	var out entity.GeoRecord
	switch {
	case lang == entity.GeoLanguageLocal:
		out.CountryName = entity.FirstPresent(c.CountryName, b.CountryName, a.CountryName)
		out.Region = entity.FirstPresent(c.Region, b.Region, a.Region)
		out.City = entity.FirstPresent(c.City, b.City, a.City)
		out.CountryCode = entity.FirstPresent(b.CountryCode, a.CountryCode)
		if c.CountryName != nil && *c.CountryName == homeCountry {
			out.Carrier = c.Carrier
		} else {
			out.Carrier = entity.FirstPresent(b.Carrier, a.Carrier)
		}
	case role == RoleInbound:
		out = a
	default:
		out = entity.GeoRecord{
			CountryCode: entity.FirstPresent(b.CountryCode, a.CountryCode),
			CountryName: entity.FirstPresent(b.CountryName, a.CountryName),
			City:        entity.FirstPresent(b.City, a.City),
			Region:      entity.FirstPresent(b.Region, a.Region),
			Carrier:     entity.FirstPresent(b.Carrier, a.Carrier),
		}
	}

	if offline != nil {
		if out.CountryCode == nil {
			out.CountryCode = entity.OptionalString(offline.CountryCode)
		}
		if out.Carrier == nil {
			out.Carrier = entity.OptionalString(offline.Carrier)
		}
	}

	return out
}

// CountryDisplay is the ISO code in primary mode and the localized country
// name in local mode
func CountryDisplay(lang entity.GeoLanguage, rec entity.GeoRecord) string {
	if lang == entity.GeoLanguageLocal {
		return rec.GetCountryName()
	}
	return rec.GetCountryCode()
}

// SamePath reports whether the v4 and v6 egress share a path: the ISO code
// and the carrier must match exactly
func SamePath(v4, v6 entity.GeoRecord) bool {
	return v4.GetCountryCode() == v6.GetCountryCode() && v4.GetCarrier() == v6.GetCarrier()
}

func orEmpty(rec *entity.GeoRecord) entity.GeoRecord {
	if rec == nil {
		return entity.GeoRecord{}
	}
	return *rec
}
