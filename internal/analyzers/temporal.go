package analyzers

import (
	"context"
	"errors"
	"math"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

const temporalWindows = 20

// Temporal scores frame-to-frame continuity and emits an anomaly timeline.
type Temporal struct {
	logger logging.Logger
}

// NewTemporal builds the temporal analyzer.
func NewTemporal(logger logging.Logger) *Temporal {
	return &Temporal{logger: logger.With(logging.Field{Key: "component", Value: "temporal-analyzer"})}
}

func (t *Temporal) Modality() model.Modality { return model.ModalityTemporal }

func (t *Temporal) Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if media == nil || len(media.Bytes) == 0 {
		return nil, errors.New("temporal: empty media")
	}

	duration := float64(temporalWindows)
	if media.FPS > 0 && media.FrameCount > 0 {
		duration = float64(media.FrameCount) / media.FPS
	}

	timeline := make([]model.TimelinePoint, 0, temporalWindows)
	var prev, jumpSum float64
	for i := 0; i < temporalWindows; i++ {
		windowScore := clamp(0.5*hashScore("temporal", chunk(media.Bytes, i, temporalWindows)) +
			0.5*entropy(chunk(media.Bytes, i, temporalWindows)))
		timeline = append(timeline, model.TimelinePoint{
			T:     float64(i) / temporalWindows * duration,
			Score: windowScore,
		})
		if i > 0 {
			jumpSum += math.Abs(windowScore - prev)
		}
		prev = windowScore
	}

	// Large window-to-window jumps suggest splices or frame substitution.
	score := clamp(jumpSum / (temporalWindows - 1) * 3)

	t.logger.Debug("temporal analysis complete", logging.Field{Key: "score", Value: score})

	return &model.Analysis{
		Score:    model.Float(score),
		Evidence: model.Fragment{Timeline: timeline},
	}, nil
}
