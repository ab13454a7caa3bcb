package entity

// GeoLanguage selects which providers drive geography and display text
type GeoLanguage string

const (
	GeoLanguagePrimary GeoLanguage = "primary"
	GeoLanguageLocal   GeoLanguage = "local"
)

// ParseGeoLanguage defaults to the primary language mode
func ParseGeoLanguage(s string) GeoLanguage {
	if GeoLanguage(s) == GeoLanguageLocal {
		return GeoLanguageLocal
	}
	return GeoLanguagePrimary
}

// GeoRecord is the canonical geo/carrier shape after normalization.
// A nil field means the providers did not supply it.
type GeoRecord struct {
	CountryCode *string `json:"country_code,omitempty"`
	CountryName *string `json:"country_name,omitempty"`
	City        *string `json:"city,omitempty"`
	Region      *string `json:"region,omitempty"`
	Carrier     *string `json:"carrier,omitempty"`
}

// IsEmpty reports whether no field is present
func (g GeoRecord) IsEmpty() bool {
	return g.CountryCode == nil && g.CountryName == nil && g.City == nil &&
		g.Region == nil && g.Carrier == nil
}

func (g GeoRecord) GetCountryCode() string { return deref(g.CountryCode) }
func (g GeoRecord) GetCountryName() string { return deref(g.CountryName) }
func (g GeoRecord) GetCity() string { return deref(g.City) }
func (g GeoRecord) GetRegion() string { return deref(g.Region) }
func (g GeoRecord) GetCarrier() string { return deref(g.Carrier) }

// OptionalString returns nil for blank input so absent data never looks like data
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FirstPresent returns the first non-nil value
func FirstPresent(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
