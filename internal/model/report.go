package model

// Tier is the qualitative weight bucket attached to a modality contribution.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Contribution is one modality's share of the total reported score.
type Contribution struct {
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Weight     Tier    `json:"weight"`
}

// Severity buckets a key indicator.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Indicator is one severity-tagged finding in a report. Ordering is
// insertion order; no further sorting is applied.
type Indicator struct {
	Modality    Modality `json:"modality"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Report is the unified explainability payload: one evidence fragment per
// modality plus the derived contribution and indicator summaries. It is built
// once, after fusion, and never fed back into it.
type Report struct {
	Evidence      EvidenceSet               `json:"evidence"`
	Contributions map[Modality]Contribution `json:"modality_contributions"`
	KeyIndicators []Indicator               `json:"key_indicators"`
}
