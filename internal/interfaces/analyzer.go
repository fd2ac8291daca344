package interfaces

import (
	"context"

	"github.com/verimedia/verimedia/internal/model"
)

// ModalityAnalyzer is the single capability contract for all per-modality
// detectors. One implementation exists per modality (vision, audio, temporal,
// lipsync); the orchestrator selects the applicable set by a table keyed on
// media type, never by per-modality branching.
//
// Implementations must not mutate shared state per request: models (if any)
// are loaded once at construction and reused read-only across jobs.
type ModalityAnalyzer interface {
	// Modality names the signal source this analyzer produces.
	Modality() model.Modality

	// Analyze scores normalized media for manipulation likelihood and returns
	// the modality-specific evidence fragment. A nil score in the result means
	// the analyzer ran but was inconclusive. Errors (and panics, which the
	// orchestrator recovers) cause the modality to be treated as absent; they
	// never abort the job.
	Analyze(ctx context.Context, media *model.Media) (*model.Analysis, error)
}
