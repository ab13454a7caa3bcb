package scoring

import "sort"

// RiskTier maps an upper score bound to a display label and accent colour
type RiskTier struct {
	// MaxScore is the inclusive upper bound of the bucket
	MaxScore int    `json:"max_score"`
	Label    string `json:"label"`
	Color    string `json:"color"`
}

// DefaultRiskTiers returns the stock purity buckets, lowest risk first
func DefaultRiskTiers() []RiskTier {
	return []RiskTier{
		{MaxScore: 15, Label: "極度純淨 IP", Color: "#0D6E3D"},
		{MaxScore: 25, Label: "純淨 IP", Color: "#2E9F5E"},
		{MaxScore: 40, Label: "一般 IP", Color: "#8BC34A"},
		{MaxScore: 50, Label: "微風險 IP", Color: "#FFC107"},
		{MaxScore: 70, Label: "一般風險 IP", Color: "#FF9800"},
		{MaxScore: 100, Label: "極度風險 IP", Color: "#F44336"},
	}
}

// TierTable classifies risk scores into buckets
type TierTable struct {
	tiers []RiskTier
}

// NewTierTable creates a table from the given buckets. An empty slice falls
// back to DefaultRiskTiers.
func NewTierTable(tiers []RiskTier) *TierTable {
	if len(tiers) == 0 {
		tiers = DefaultRiskTiers()
	}
	sorted := make([]RiskTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MaxScore < sorted[j].MaxScore
	})
	return &TierTable{tiers: sorted}
}

// NewDefaultTierTable creates a table with the stock buckets
func NewDefaultTierTable() *TierTable {
	return NewTierTable(nil)
}

// Classify returns the first bucket whose bound covers the score.
// Scores above every bound land in the last bucket.
func (t *TierTable) Classify(score int) RiskTier {
	for _, tier := range t.tiers {
		if score <= tier.MaxScore {
			return tier
		}
	}
	return t.tiers[len(t.tiers)-1]
}
