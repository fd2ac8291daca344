package explain_test

import (
	"math"
	"strings"
	"testing"

	"github.com/verimedia/verimedia/internal/explain"
	"github.com/verimedia/verimedia/internal/model"
	"github.com/verimedia/verimedia/internal/testutil"
)

func newAggregator(t *testing.T) *explain.Aggregator {
	t.Helper()
	a, err := explain.NewAggregator(&testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return a
}

// ─── Placeholders ──────────────────────────────────────────────────────

func TestEnhance_SynthesizesMissingFragments(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	media := &model.Media{Type: model.MediaVideo, FrameCount: 60, FPS: 30}
	scores := model.Scores{model.ModalityVision: 0.6, model.ModalityAudio: 0.4}

	// Vision evidence present, temporal entirely missing.
	evidence := model.EvidenceSet{
		model.ModalityVision: {Heatmap: []model.HeatmapCell{{X: 0, Y: 0, W: 1, H: 1, Intensity: 0.9}}},
	}

	report := a.Enhance(evidence, scores, media)

	if got := report.Evidence[model.ModalityVision].Heatmap; len(got) != 1 || got[0].Intensity != 0.9 {
		t.Errorf("existing vision heatmap was replaced: %+v", got)
	}
	timeline := report.Evidence[model.ModalityTemporal].Timeline
	if len(timeline) == 0 {
		t.Fatal("missing temporal fragment was not synthesized")
	}
	for _, p := range timeline {
		if p.Score < 0.3 || p.Score > 0.7 {
			t.Errorf("placeholder timeline score %v outside low-variance band", p.Score)
		}
	}
	if report.Evidence[model.ModalityAudio].Inconsistencies == nil {
		t.Error("audio fragment left nil; downstream must never branch on absence")
	}
	if report.Evidence[model.ModalityLipsync].Inconsistencies == nil {
		t.Error("lipsync fragment left nil")
	}
}

func TestEnhance_ImagePlaceholderIsUniformGrid(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	report := a.Enhance(model.EvidenceSet{}, model.Scores{model.ModalityVision: 0.5},
		&model.Media{Type: model.MediaImage})

	heatmap := report.Evidence[model.ModalityVision].Heatmap
	if len(heatmap) != 16 {
		t.Fatalf("placeholder heatmap has %d cells, want 16", len(heatmap))
	}
	for _, c := range heatmap {
		if c.W != 0.25 || c.H != 0.25 {
			t.Errorf("cell extent (%v,%v), want uniform 0.25 grid", c.W, c.H)
		}
	}
}

// ─── Contributions ─────────────────────────────────────────────────────

func TestEnhance_ContributionsSumToHundred(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	scores := model.Scores{
		model.ModalityVision:   0.8,
		model.ModalityAudio:    0.3,
		model.ModalityTemporal: 0.45,
	}
	report := a.Enhance(model.EvidenceSet{}, scores, &model.Media{Type: model.MediaVideo})

	var sum float64
	for _, c := range report.Contributions {
		sum += c.Percentage
	}
	if math.Abs(sum-100) > 1e-6 {
		t.Errorf("contribution percentages sum to %v, want 100", sum)
	}

	if tier := report.Contributions[model.ModalityVision].Weight; tier != model.TierHigh {
		t.Errorf("vision tier = %q, want high", tier)
	}
	if tier := report.Contributions[model.ModalityTemporal].Weight; tier != model.TierMedium {
		t.Errorf("temporal tier = %q, want medium", tier)
	}
	if tier := report.Contributions[model.ModalityAudio].Weight; tier != model.TierLow {
		t.Errorf("audio tier = %q, want low", tier)
	}
}

func TestEnhance_ZeroScoresYieldEmptyContributions(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	report := a.Enhance(model.EvidenceSet{},
		model.Scores{model.ModalityVision: 0, model.ModalityAudio: 0},
		&model.Media{Type: model.MediaVideo})
	if len(report.Contributions) != 0 {
		t.Errorf("contributions = %v, want empty map", report.Contributions)
	}
	if report.Contributions == nil {
		t.Error("contributions map is nil, want empty")
	}
}

// ─── Key indicators ────────────────────────────────────────────────────

func TestEnhance_KeyIndicatorSeverities(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	scores := model.Scores{
		model.ModalityVision:   0.9,  // high
		model.ModalityAudio:    0.55, // medium
		model.ModalityTemporal: 0.5,  // below medium threshold, excluded
	}
	report := a.Enhance(model.EvidenceSet{}, scores, &model.Media{Type: model.MediaVideo})

	if len(report.KeyIndicators) != 2 {
		t.Fatalf("got %d indicators, want 2: %+v", len(report.KeyIndicators), report.KeyIndicators)
	}
	if report.KeyIndicators[0].Modality != model.ModalityVision ||
		report.KeyIndicators[0].Severity != model.SeverityHigh {
		t.Errorf("first indicator = %+v, want high vision", report.KeyIndicators[0])
	}
	if report.KeyIndicators[1].Modality != model.ModalityAudio ||
		report.KeyIndicators[1].Severity != model.SeverityMedium {
		t.Errorf("second indicator = %+v, want medium audio", report.KeyIndicators[1])
	}
}

func TestEnhance_MetadataFlagsAppendIndicator(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	evidence := model.EvidenceSet{
		model.ModalityMetadata: {Flags: []string{"missing_creation_time", "software_modified"}},
	}
	report := a.Enhance(evidence, model.Scores{model.ModalityVision: 0.2},
		&model.Media{Type: model.MediaImage})

	if len(report.KeyIndicators) != 1 {
		t.Fatalf("got %d indicators, want 1", len(report.KeyIndicators))
	}
	ind := report.KeyIndicators[0]
	if ind.Modality != model.ModalityMetadata || ind.Severity != model.SeverityMedium {
		t.Errorf("indicator = %+v, want medium metadata", ind)
	}
	if !strings.Contains(ind.Description, "missing_creation_time") ||
		!strings.Contains(ind.Description, "software_modified") {
		t.Errorf("description %q does not list the flags", ind.Description)
	}
}

// ─── Fail-soft ─────────────────────────────────────────────────────────

func TestEnhance_NilMediaStillProducesReport(t *testing.T) {
	t.Parallel()
	a := newAggregator(t)

	evidence := model.EvidenceSet{model.ModalityVision: {Regions: []model.Region{{Confidence: 0.8}}}}
	report := a.Enhance(evidence, model.Scores{model.ModalityVision: 0.8}, nil)

	if len(report.Evidence[model.ModalityVision].Regions) != 1 {
		t.Error("original evidence not preserved")
	}
	if len(report.KeyIndicators) == 0 {
		t.Error("indicators missing for high vision score")
	}
}
