package fusion

import "github.com/verimedia/verimedia/internal/model"

// DefaultWeights maps each media type to its modality weight table.
// Weights within a table need not sum to 1: fusion renormalizes over the
// modalities that actually reported. These are heuristic and can be tuned
// over time.
var DefaultWeights = map[model.MediaType]map[model.Modality]float64{
	model.MediaImage: {
		model.ModalityVision:   0.85, // primary signal - facial/visual artifacts
		model.ModalityMetadata: 0.15, // EXIF tampering, compression artifacts
	},
	model.MediaAudio: {
		model.ModalityAudio:    0.92, // primary signal - voice synthesis detection
		model.ModalityMetadata: 0.08, // audio metadata forensics
	},
	model.MediaVideo: {
		// Video is multi-modal - balance all signals.
		model.ModalityLipsync:  0.30, // strongest: voice-lip mismatch is hard to fake
		model.ModalityVision:   0.25, // face swap artifacts, unnatural movements
		model.ModalityAudio:    0.20, // voice deepfake in the video audio track
		model.ModalityTemporal: 0.20, // frame inconsistencies, continuity errors
		model.ModalityMetadata: 0.05, // weakest standalone signal
	},
}

// Label thresholds. The policy is three-way: confidence strictly above
// manipulatedThreshold is manipulated, at or above suspiciousThreshold is
// suspicious, anything below is authentic. Both boundary values therefore
// resolve to suspicious.
const (
	manipulatedThreshold = 0.6
	suspiciousThreshold  = 0.4
)

// labelFor applies the thresholding policy to a confidence score.
func labelFor(confidence float64) model.Label {
	switch {
	case confidence > manipulatedThreshold:
		return model.LabelManipulated
	case confidence >= suspiciousThreshold:
		return model.LabelSuspicious
	default:
		return model.LabelAuthentic
	}
}
