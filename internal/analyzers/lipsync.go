package analyzers

import (
	"context"
	"errors"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

// Lipsync scores voice-to-lip correlation. Low correlation between the mouth
// movement proxy and the audio proxy reads as a likely voice swap.
type Lipsync struct {
	logger logging.Logger
}

// NewLipsync builds the lip-sync analyzer.
func NewLipsync(logger logging.Logger) *Lipsync {
	return &Lipsync{logger: logger.With(logging.Field{Key: "component", Value: "lipsync-analyzer"})}
}

func (l *Lipsync) Modality() model.Modality { return model.ModalityLipsync }

func (l *Lipsync) Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if media == nil || len(media.Bytes) == 0 {
		return nil, errors.New("lipsync: empty media")
	}
	if media.Type != model.MediaVideo {
		// No frames to correlate against; the modality is inconclusive.
		return &model.Analysis{Evidence: model.Fragment{
			Inconsistencies: map[string]any{"warning": "no video track"},
		}}, nil
	}

	// Proxy correlation between the visual and audio halves of the stream.
	visual := hashScore("lipsync-visual", chunk(media.Bytes, 0, 2))
	audio := hashScore("lipsync-audio", chunk(media.Bytes, 1, 2))
	correlation := clamp(1 - (visual-audio)*(visual-audio)*4)
	score := clamp(1 - correlation)

	inconsistencies := map[string]any{
		"correlation": correlation,
		"frames":      media.FrameCount,
	}
	if score > 0.6 {
		inconsistencies["voice_lip_mismatch"] = true
	}

	l.logger.Debug("lipsync analysis complete",
		logging.Field{Key: "score", Value: score},
		logging.Field{Key: "correlation", Value: correlation})

	return &model.Analysis{
		Score:    model.Float(score),
		Evidence: model.Fragment{Inconsistencies: inconsistencies},
	}, nil
}
