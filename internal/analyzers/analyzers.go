// Package analyzers ships the default implementations of the per-modality
// analyzer capability. They are deterministic byte-statistics heuristics that
// stand in for real inference backends: each produces a stable score in [0,1]
// for a given input plus the evidence fragment shape its modality is expected
// to emit. Swapping in a real detector means implementing
// interfaces.ModalityAnalyzer, nothing more.
package analyzers

import (
	"hash/fnv"
	"math"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

// Default constructs the full analyzer set, keyed by modality. Instances are
// shared and read-only after construction; build them once and hand them to
// the orchestrator.
func Default(logger logging.Logger) map[model.Modality]interfaces.ModalityAnalyzer {
	return map[model.Modality]interfaces.ModalityAnalyzer{
		model.ModalityVision:   NewVision(logger),
		model.ModalityAudio:    NewAudio(logger),
		model.ModalityTemporal: NewTemporal(logger),
		model.ModalityLipsync:  NewLipsync(logger),
	}
}

// hashScore maps (salt, data) onto a stable value in (0,1). Different salts
// decorrelate the modalities so one input does not produce identical scores
// everywhere.
func hashScore(salt string, data []byte) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write(data)
	return float64(h.Sum64()%10000) / 10000.0
}

// entropy estimates the Shannon entropy of data in bits per byte, normalized
// to [0,1]. High-entropy content (heavy compression, re-encoding) reads as
// mildly more suspicious across the heuristics.
func entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	var bits float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		bits -= p * math.Log2(p)
	}
	return bits / 8
}

// chunk returns the slice of data covering segment i of n, for building
// per-region and per-window statistics.
func chunk(data []byte, i, n int) []byte {
	if len(data) == 0 || n <= 0 {
		return nil
	}
	size := len(data) / n
	if size == 0 {
		return data
	}
	start := i * size
	end := start + size
	if i == n-1 {
		end = len(data)
	}
	return data[start:end]
}

// clamp limits v to [0,1].
func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
