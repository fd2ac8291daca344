package interfaces

import (
	"context"
	"errors"

	"github.com/verimedia/verimedia/internal/model"
)

// ErrResultNotFound is returned by ResultStore.Get for unknown job ids.
var ErrResultNotFound = errors.New("job result not found")

// ResultStore is the keyed lookup store for finished job results.
// Implementations must be safe for concurrent use and make Put atomic per
// key; results are written once per job id and treated as immutable.
type ResultStore interface {
	// Put stores the result under its job id.
	Put(ctx context.Context, result *model.JobResult) error

	// Get returns the stored result for jobID, or ErrResultNotFound.
	Get(ctx context.Context, jobID string) (*model.JobResult, error)

	// Close releases resources held by the store.
	Close() error
}
