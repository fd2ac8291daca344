package model

import (
	"errors"
	"strings"
	"time"
)

// ErrUnsupportedMediaType is returned when a declared content type does not
// map onto any known media class. It is a client error, not a system fault.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// MediaType classifies an uploaded item. It is determined once at ingestion
// from the declared content type and is immutable afterwards; it selects both
// the applicable analyzer set and the fusion weight table.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// ClassifyContentType maps a declared MIME content type onto a MediaType by
// prefix. Parameters (e.g. "; charset=...") are ignored. Unrecognized
// prefixes return ErrUnsupportedMediaType.
func ClassifyContentType(contentType string) (MediaType, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage, nil
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio, nil
	case strings.HasPrefix(ct, "video/"):
		return MediaVideo, nil
	}
	return "", ErrUnsupportedMediaType
}

// Media is the normalized input handed to modality analyzers. Bytes carry the
// raw media content; the remaining fields are best-effort hints that
// individual analyzers may ignore.
type Media struct {
	Type        MediaType
	ContentType string
	URL         string
	Bytes       []byte

	// Video hints; zero when unknown or not applicable.
	FrameCount int
	FPS        float64

	// Metadata is the extractor's best-effort provenance view; may be nil.
	Metadata *MediaMetadata
}

// MediaMetadata is the best-effort provenance record produced by the metadata
// extraction collaborator. Absence of any field is expected and non-fatal.
type MediaMetadata struct {
	CreationTime     *time.Time `json:"creation_time,omitempty"`
	DeviceInfo       string     `json:"device_info,omitempty"`
	Software         string     `json:"software,omitempty"`
	SoftwareModified bool       `json:"software_modified"`
	FileSize         int        `json:"file_size"`

	// SuspicionScore is the derived metadata suspicion in [0,1]. The neutral
	// sentinel 0.5 means "nothing informative" and must not be fed into fusion.
	SuspicionScore float64 `json:"suspicion_score"`

	// Flags names the individual anomalies behind the suspicion score,
	// e.g. "missing_creation_time", "software_modified".
	Flags []string `json:"flags,omitempty"`
}

// MetadataNeutralScore is the uninformative sentinel value. A metadata score
// equal to it is excluded from fusion so it cannot dilute genuine signals.
const MetadataNeutralScore = 0.5

// Informative reports whether the metadata suspicion score carries signal.
func (m *MediaMetadata) Informative() bool {
	return m != nil && m.SuspicionScore != MetadataNeutralScore
}
