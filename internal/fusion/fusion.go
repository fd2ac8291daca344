// Package fusion combines heterogeneous, possibly-missing per-modality
// manipulation scores into a single confidence score and categorical label.
// Missing modalities are excluded outright and the weighted average is
// renormalized over whichever modalities actually reported, so a missing
// signal never depresses the verdict merely by dilution.
package fusion

import (
	"errors"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

// NeutralConfidence is the fallback confidence when no recognized modality
// reported. It is the only fallback path and is always logged as degraded.
const NeutralConfidence = 0.5

// Engine fuses modality scores using media-type-specific weight tables.
// It is stateless after construction and safe for concurrent use.
type Engine struct {
	weights map[model.MediaType]map[model.Modality]float64
	logger  logging.Logger
}

// NewEngine builds an Engine over the given weight tables. Pass nil to use
// DefaultWeights. A non-nil logger is required so degraded fusions are never
// silent.
func NewEngine(weights map[model.MediaType]map[model.Modality]float64, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("fusion: nil logger provided")
	}
	if weights == nil {
		weights = DefaultWeights
	}
	return &Engine{
		weights: weights,
		logger:  logger.With(logging.Field{Key: "component", Value: "fusion"}),
	}, nil
}

// Fuse computes the weighted average of the present scores over the media
// type's weight table, renormalized to the weights of the modalities that
// reported. Modalities absent from the input or unknown to the table are
// skipped entirely, never substituted with a neutral default. When nothing
// usable remains the result is the neutral 0.5, flagged Degraded.
func (e *Engine) Fuse(scores model.Scores, mediaType model.MediaType) model.FusionResult {
	table := e.weights[mediaType]

	var weightedSum, totalWeight float64
	for modality, score := range scores {
		weight, ok := table[modality]
		if !ok {
			continue
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		e.logger.Warn("no recognized modality reported, returning neutral confidence",
			logging.Field{Key: "media_type", Value: string(mediaType)},
			logging.Field{Key: "score_count", Value: len(scores)})
		return model.FusionResult{
			ConfidenceScore: NeutralConfidence,
			Label:           labelFor(NeutralConfidence),
			Degraded:        true,
		}
	}

	confidence := weightedSum / totalWeight
	return model.FusionResult{
		ConfidenceScore: confidence,
		Label:           labelFor(confidence),
	}
}

// FuseAdaptive recomputes each modality's effective weight from a per-modality
// certainty map before fusing: base * (1 + certainty/sum(certainties)) for
// modalities present in confidenceLevels, the base weight otherwise, with the
// adjusted weights normalized to sum to 1. The weighted average is still
// renormalized over the modalities that actually reported. An empty certainty
// map degrades gracefully to the base algorithm.
func (e *Engine) FuseAdaptive(scores model.Scores, mediaType model.MediaType, confidenceLevels map[model.Modality]float64) model.FusionResult {
	var totalConfidence float64
	for _, c := range confidenceLevels {
		totalConfidence += c
	}
	if totalConfidence == 0 {
		return e.Fuse(scores, mediaType)
	}

	base := e.weights[mediaType]
	adjusted := make(map[model.Modality]float64, len(base))
	var adjustedTotal float64
	for modality, weight := range base {
		if c, ok := confidenceLevels[modality]; ok {
			weight *= 1 + c/totalConfidence
		}
		adjusted[modality] = weight
		adjustedTotal += weight
	}
	if adjustedTotal == 0 {
		return e.Fuse(scores, mediaType)
	}
	for modality := range adjusted {
		adjusted[modality] /= adjustedTotal
	}

	var weightedSum, totalWeight float64
	for modality, score := range scores {
		weight, ok := adjusted[modality]
		if !ok {
			continue
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		e.logger.Warn("adaptive fusion had no usable modalities, returning neutral confidence",
			logging.Field{Key: "media_type", Value: string(mediaType)})
		return model.FusionResult{
			ConfidenceScore: NeutralConfidence,
			Label:           labelFor(NeutralConfidence),
			Degraded:        true,
		}
	}

	confidence := weightedSum / totalWeight
	return model.FusionResult{
		ConfidenceScore: confidence,
		Label:           labelFor(confidence),
	}
}
