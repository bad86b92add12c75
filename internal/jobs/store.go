// Package jobs defines the storage contract for job records and an
// in-memory reference implementation of it.
package jobs

import (
	"context"
	"errors"

	"github.com/appforge/forge/internal/db/models"
)

// ErrNotFound is returned when a job id does not exist in the store
var ErrNotFound = errors.New("job not found")

// Store is the persistence boundary for job records. Update applies the
// mutator to the current record and persists the result only when the
// mutator succeeds, so a mutator that refuses to touch a terminal job turns
// the write into a compare-and-set.
//
// The orchestrator holds an exclusive per-job run lock for the lifetime of a
// pipeline, so implementations only need Update to be atomic per id, not to
// arbitrate between concurrent pipelines.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, id string, mutate func(*models.Job) error) (*models.Job, error)
	List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error)
}
