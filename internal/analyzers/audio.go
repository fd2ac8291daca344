package analyzers

import (
	"context"
	"errors"
	"math"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

const audioSegments = 8

// Audio scores synthetic-voice likelihood from segment-level signal
// statistics and reports the inconsistencies it found.
type Audio struct {
	logger logging.Logger
}

// NewAudio builds the audio analyzer.
func NewAudio(logger logging.Logger) *Audio {
	return &Audio{logger: logger.With(logging.Field{Key: "component", Value: "audio-analyzer"})}
}

func (a *Audio) Modality() model.Modality { return model.ModalityAudio }

func (a *Audio) Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if media == nil || len(media.Bytes) == 0 {
		return nil, errors.New("audio: empty media")
	}

	// Per-segment entropies; unnaturally flat profiles read as synthetic.
	segments := make([]float64, audioSegments)
	var mean float64
	for i := range segments {
		segments[i] = entropy(chunk(media.Bytes, i, audioSegments))
		mean += segments[i]
	}
	mean /= audioSegments

	var variance float64
	for _, e := range segments {
		variance += (e - mean) * (e - mean)
	}
	variance /= audioSegments
	flatness := clamp(1 - math.Sqrt(variance)*10)

	score := clamp(0.5*flatness + 0.5*hashScore("audio", media.Bytes))

	inconsistencies := map[string]any{
		"spectral_flatness": flatness,
		"segments":          audioSegments,
	}
	if flatness > 0.8 {
		inconsistencies["suspiciously_uniform_spectrum"] = true
	}

	a.logger.Debug("audio analysis complete", logging.Field{Key: "score", Value: score})

	return &model.Analysis{
		Score:    model.Float(score),
		Evidence: model.Fragment{Inconsistencies: inconsistencies},
	}, nil
}
