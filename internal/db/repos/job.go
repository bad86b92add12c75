// Package repos provides database-backed implementations of the storage
// contracts consumed by the rest of the service.
package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/jobs"
)

// JobRepository is the GORM-backed jobs.Store
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ jobs.Store = (*JobRepository)(nil)

// Create inserts a new job record
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// Get retrieves a job by its id
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where(&models.Job{ID: id}).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Update applies the mutator to the current row inside a transaction. On
// Postgres the row is locked for the duration so the read-mutate-write is a
// true compare-and-set; a mutator error aborts the transaction without a
// write.
func (r *JobRepository) Update(ctx context.Context, id string, mutate func(*models.Job) error) (*models.Job, error) {
	var updated models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var job models.Job
		if err := q.Where(&models.Job{ID: id}).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return jobs.ErrNotFound
			}
			return fmt.Errorf("failed to load job: %w", err)
		}
		if err := mutate(&job); err != nil {
			return err
		}
		if err := tx.Save(&job).Error; err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// List returns jobs ordered by creation time descending, filtered by the
// given options
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error) {
	if opts == nil {
		opts = &models.ListOptions{}
	}
	opts.Normalize()

	q := r.db.WithContext(ctx).Model(&models.Job{})
	if opts.Status != nil {
		q = q.Where("status = ?", *opts.Status)
	}
	if opts.OwnerID != "" {
		q = q.Where("owner_id = ?", opts.OwnerID)
	}
	if opts.Query != "" {
		q = q.Where("prompt LIKE ?", "%"+opts.Query+"%")
	}

	var out []models.Job
	err := q.Limit(opts.Limit).Offset(opts.Offset).
		Order(models.JobCreatedAtField + " DESC").
		Find(&out).Error
	return out, err
}
