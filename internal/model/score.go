package model

// Modality names one analytical signal source. The set is open: fusion and
// explainability treat unknown modality names as data, not errors.
type Modality string

const (
	ModalityVision   Modality = "vision"
	ModalityAudio    Modality = "audio"
	ModalityTemporal Modality = "temporal"
	ModalityLipsync  Modality = "lipsync"
	ModalityMetadata Modality = "metadata"
)

// Scores maps modalities to manipulation-likelihood scores in [0,1].
// A modality that did not run, failed, or was inconclusive is simply absent
// from the map; it must never be defaulted into fusion.
type Scores map[Modality]float64

// Clone returns an independent copy of the score map.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Analysis is the output of one modality analyzer run: a score plus the
// analyzer-specific evidence fragment. A nil Score means the analyzer ran but
// was inconclusive; the modality is then treated as absent.
type Analysis struct {
	Score    *float64 `json:"score"`
	Evidence Fragment `json:"evidence"`
}

// Float is a small helper for building optional scores.
func Float(v float64) *float64 { return &v }

// HeatmapCell is one cell of a spatial manipulation heatmap. Coordinates and
// extents are normalized to [0,1] relative to the frame.
type HeatmapCell struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
	Intensity float64 `json:"intensity"`
}

// Region marks a spatial region flagged as likely manipulated.
type Region struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

// TimelinePoint is one sample of a temporal anomaly timeline. T is seconds
// from the start of the media.
type TimelinePoint struct {
	T     float64 `json:"t"`
	Score float64 `json:"score"`
}

// Fragment is one modality's raw evidence. The shape is modality-specific:
// spatial modalities populate Heatmap/Regions, temporal ones Timeline, signal
// comparisons Inconsistencies, and metadata analysis Flags. All fields are
// optional.
type Fragment struct {
	Heatmap         []HeatmapCell   `json:"heatmap,omitempty"`
	Regions         []Region        `json:"manipulated_regions,omitempty"`
	Timeline        []TimelinePoint `json:"anomalies_timeline,omitempty"`
	Inconsistencies map[string]any  `json:"inconsistencies,omitempty"`
	Flags           []string        `json:"flags,omitempty"`
}

// Empty reports whether the fragment carries no evidence at all.
func (f Fragment) Empty() bool {
	return len(f.Heatmap) == 0 && len(f.Regions) == 0 && len(f.Timeline) == 0 &&
		len(f.Inconsistencies) == 0 && len(f.Flags) == 0
}

// EvidenceSet maps modalities to their raw evidence fragments.
type EvidenceSet map[Modality]Fragment
