package geoenrich

import (
	"regexp"
	"strings"

	"github.com/kr1s57/netlens/internal/adapter/external/geoip"
	"github.com/kr1s57/netlens/internal/entity"
)

// Shape identifies the response format of a geo provider
type Shape string

const (
	// ShapeA is ip-api.com: ISO code, English names, org/isp
	ShapeA Shape = "A"
	// ShapeB is ipinfo.io: ISO code, city/region, "AS<n> org"
	ShapeB Shape = "B"
	// ShapeC is the localized provider: localized names and carrier
	ShapeC Shape = "C"
)

// ProviderPayload is a raw provider response tagged with its shape.
// Exactly the field matching Shape is set.
type ProviderPayload struct {
	Shape Shape
	A     *geoip.IPAPIResponse
	B     *geoip.IPInfoResponse
	C     *geoip.LocalGeoResponse
}

var asPrefix = regexp.MustCompile(`^AS\d+(\s+|$)`)

// carrierNames maps short domestic carrier names to their full form
var carrierNames = map[string]string{
	"电信": "中国电信",
	"联通": "中国联通",
	"移动": "中国移动",
	"广电": "中国广电",
	"铁通": "中国铁通",
}

// Normalize converts a payload into the canonical record. Blank fields stay
// absent. A payload whose shape field is nil yields nil.
func Normalize(p ProviderPayload) *entity.GeoRecord {
	switch p.Shape {
	case ShapeA:
		if p.A == nil {
			return nil
		}
		return &entity.GeoRecord{
			CountryCode: entity.OptionalString(strings.ToUpper(strings.TrimSpace(p.A.CountryCode))),
			CountryName: entity.OptionalString(strings.TrimSpace(p.A.Country)),
			City:        entity.OptionalString(strings.TrimSpace(p.A.City)),
			Region:      entity.OptionalString(strings.TrimSpace(p.A.RegionName)),
			Carrier: entity.FirstPresent(
				entity.OptionalString(strings.TrimSpace(p.A.Org)),
				entity.OptionalString(strings.TrimSpace(p.A.ISP)),
			),
		}
	case ShapeB:
		if p.B == nil {
			return nil
		}
		return &entity.GeoRecord{
			CountryCode: entity.OptionalString(strings.ToUpper(strings.TrimSpace(p.B.Country))),
			City:        entity.OptionalString(strings.TrimSpace(p.B.City)),
			Region:      entity.OptionalString(strings.TrimSpace(p.B.Region)),
			Carrier:     entity.OptionalString(StripASPrefix(p.B.Org)),
		}
	case ShapeC:
		if p.C == nil {
			return nil
		}
		d := p.C.Data
		carrier := strings.TrimSpace(d.ISP)
		if carrier == "" {
			carrier = strings.TrimSpace(d.Owner)
		}
		return &entity.GeoRecord{
			CountryName: entity.OptionalString(strings.TrimSpace(d.Country)),
			Region:      entity.OptionalString(strings.TrimSpace(d.Prov)),
			City:        entity.OptionalString(strings.TrimSpace(d.City)),
			Carrier:     entity.OptionalString(LocalizeCarrier(carrier)),
		}
	}
	return nil
}

// StripASPrefix removes a leading "AS<digits> " from an organisation
func StripASPrefix(org string) string {
	return strings.TrimSpace(asPrefix.ReplaceAllString(strings.TrimSpace(org), ""))
}

// LocalizeCarrier expands a bare domestic carrier name ("电信") to its full
// form ("中国电信"). Names already carrying the prefix, and anything else,
// are returned unchanged.
func LocalizeCarrier(carrier string) string {
	if full, ok := carrierNames[carrier]; ok {
		return full
	}
	return carrier
}
