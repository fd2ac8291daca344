// Package metadata implements the best-effort metadata extraction
// collaborator. It sniffs provenance markers (creation timestamps, device
// makers, editing software) out of raw media bytes without decoding the
// container, and derives a suspicion score from what is missing or modified.
// Every field is optional; extraction problems degrade to the neutral record.
package metadata

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/verimedia/verimedia/internal/logging"
	"github.com/verimedia/verimedia/internal/model"
)

// Scan window: provenance markers sit near the head of every common
// container, so a bounded scan keeps large uploads cheap.
const scanLimit = 256 * 1024

// exifTimestamp matches EXIF-style "YYYY:MM:DD HH:MM:SS" timestamps.
var exifTimestamp = regexp.MustCompile(`(19|20)\d{2}:(0[1-9]|1[0-2]):(0[1-9]|[12]\d|3[01]) ([01]\d|2[0-3]):[0-5]\d:[0-5]\d`)

// Device and editing-software markers worth sniffing for. Editing software
// presence is the strongest single anomaly signal.
var (
	deviceMarkers = [][]byte{
		[]byte("Canon"), []byte("NIKON"), []byte("Apple"), []byte("samsung"),
		[]byte("SONY"), []byte("DJI"), []byte("GoPro"), []byte("Xiaomi"),
	}
	softwareMarkers = [][]byte{
		[]byte("Photoshop"), []byte("Adobe"), []byte("GIMP"), []byte("Lavf"),
		[]byte("HandBrake"), []byte("CapCut"), []byte("Premiere"), []byte("ffmpeg"),
	}
)

// Extractor is the default MetadataExtractor implementation.
type Extractor struct {
	logger logging.Logger
}

// NewExtractor builds the extractor.
func NewExtractor(logger logging.Logger) *Extractor {
	return &Extractor{logger: logger.With(logging.Field{Key: "component", Value: "metadata"})}
}

// Extract sniffs provenance out of data and derives the suspicion score:
// starting from the neutral 0.5, +0.1 for a missing creation time, +0.1 for
// missing device info, +0.2 when editing software left its mark, capped at
// 1.0. The flags name each contributing anomaly.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType model.MediaType) *model.MediaMetadata {
	meta := &model.MediaMetadata{
		SuspicionScore: model.MetadataNeutralScore,
		FileSize:       len(data),
	}
	if len(data) == 0 || ctx.Err() != nil {
		return meta
	}

	window := data
	if len(window) > scanLimit {
		window = window[:scanLimit]
	}

	if ts := exifTimestamp.Find(window); ts != nil {
		if parsed, err := time.Parse("2006:01:02 15:04:05", string(ts)); err == nil {
			meta.CreationTime = &parsed
		}
	}
	for _, marker := range deviceMarkers {
		if bytes.Contains(window, marker) {
			meta.DeviceInfo = string(marker)
			break
		}
	}
	for _, marker := range softwareMarkers {
		if bytes.Contains(window, marker) {
			meta.Software = string(marker)
			meta.SoftwareModified = true
			break
		}
	}

	if meta.CreationTime == nil {
		meta.SuspicionScore += 0.1
		meta.Flags = append(meta.Flags, "missing_creation_time")
	}
	if meta.DeviceInfo == "" {
		meta.SuspicionScore += 0.1
		meta.Flags = append(meta.Flags, "missing_device_info")
	}
	if meta.SoftwareModified {
		meta.SuspicionScore += 0.2
		meta.Flags = append(meta.Flags, "software_modified")
	}
	if meta.SuspicionScore > 1 {
		meta.SuspicionScore = 1
	}

	e.logger.Debug("metadata extracted",
		logging.Field{Key: "media_type", Value: string(mediaType)},
		logging.Field{Key: "suspicion", Value: meta.SuspicionScore},
		logging.Field{Key: "flags", Value: meta.Flags})

	return meta
}
