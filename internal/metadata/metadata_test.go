package metadata_test

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/verimedia/verimedia/internal/metadata"
	"github.com/verimedia/verimedia/internal/model"
	"github.com/verimedia/verimedia/internal/testutil"
)

func newExtractor(t *testing.T) *metadata.Extractor {
	t.Helper()
	return metadata.NewExtractor(&testutil.DummyLogger{})
}

func TestExtract_CleanProvenanceStaysNeutral(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	data := []byte("....Exif..Canon EOS R5..2021:05:10 11:22:33....payload")
	meta := e.Extract(context.Background(), data, model.MediaImage)

	if meta.SuspicionScore != model.MetadataNeutralScore {
		t.Errorf("suspicion = %v, want neutral %v", meta.SuspicionScore, model.MetadataNeutralScore)
	}
	if meta.Informative() {
		t.Error("clean provenance must be uninformative (excluded from fusion)")
	}
	if meta.CreationTime == nil {
		t.Error("creation time not extracted")
	}
	if meta.DeviceInfo != "Canon" {
		t.Errorf("device = %q, want Canon", meta.DeviceInfo)
	}
	if len(meta.Flags) != 0 {
		t.Errorf("flags = %v, want none", meta.Flags)
	}
}

func TestExtract_MissingProvenanceAccumulates(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	meta := e.Extract(context.Background(), []byte("opaque payload without markers"), model.MediaVideo)

	if want := 0.7; math.Abs(meta.SuspicionScore-want) > 1e-9 {
		t.Errorf("suspicion = %v, want %v", meta.SuspicionScore, want)
	}
	if !meta.Informative() {
		t.Error("anomalous metadata must be informative")
	}
	wantFlags := []string{"missing_creation_time", "missing_device_info"}
	if diff := cmp.Diff(wantFlags, meta.Flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EditingSoftwareIsStrongestSignal(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	meta := e.Extract(context.Background(), []byte("...Adobe Photoshop 25.0..."), model.MediaImage)

	if !meta.SoftwareModified {
		t.Fatal("software marker not detected")
	}
	// 0.5 base + 0.1 missing time + 0.1 missing device + 0.2 software.
	if want := 0.9; math.Abs(meta.SuspicionScore-want) > 1e-9 {
		t.Errorf("suspicion = %v, want %v", meta.SuspicionScore, want)
	}
}

func TestExtract_EmptyDataReturnsNeutralRecord(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	meta := e.Extract(context.Background(), nil, model.MediaAudio)
	if meta.SuspicionScore != model.MetadataNeutralScore || len(meta.Flags) != 0 {
		t.Errorf("empty data: got %+v, want neutral record", meta)
	}
}

func TestExtract_ScoreIsCapped(t *testing.T) {
	t.Parallel()
	e := newExtractor(t)

	// Software modified with nothing else present keeps the score below the
	// cap; the cap only matters if future anomaly weights grow. Assert the
	// invariant directly.
	meta := e.Extract(context.Background(), []byte("ffmpeg remux"), model.MediaVideo)
	if meta.SuspicionScore > 1 {
		t.Errorf("suspicion %v exceeds 1", meta.SuspicionScore)
	}
}
