package scoring

import "strings"

// FlagMapper turns ISO 3166-1 alpha-2 codes into flag emoji.
// Overrides substitute one region's flag for another before rendering.
type FlagMapper struct {
	overrides map[string]string
}

// NewFlagMapper creates a mapper with the given code substitutions
func NewFlagMapper(overrides map[string]string) *FlagMapper {
	normalized := make(map[string]string, len(overrides))
	for from, to := range overrides {
		normalized[strings.ToUpper(strings.TrimSpace(from))] = strings.ToUpper(strings.TrimSpace(to))
	}
	return &FlagMapper{overrides: normalized}
}

// Flag returns the regional-indicator pair for code, or "" when code is not
// a two-letter ASCII code.
func (m *FlagMapper) Flag(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if to, ok := m.overrides[code]; ok {
		code = to
	}
	if len(code) != 2 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < 2; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(rune(0x1F1E6 + int(c-'A')))
	}
	return b.String()
}
