package interfaces

import (
	"context"

	"github.com/verimedia/verimedia/internal/model"
)

// MetadataExtractor is the metadata extraction collaborator. Given raw bytes
// and the classified media type, it returns a best-effort provenance record
// with a derived suspicion score in [0,1]. Absence of any field is expected;
// extraction problems degrade to the neutral record rather than failing.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte, mediaType model.MediaType) *model.MediaMetadata
}
