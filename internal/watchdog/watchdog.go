// Package watchdog enforces the maximum runtime budget for jobs. A periodic
// sweep force-fails jobs that have recorded no progress within the budget,
// using a conditional write so a pipeline that finishes first always wins.
package watchdog

import (
	"context"
	"errors"
	"time"

	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/logger"
)

const (
	// DefaultBudget is how long a job may go without recorded progress
	DefaultBudget = 15 * time.Minute
	// DefaultInterval is the sweep period
	DefaultInterval = time.Minute

	// TimeoutError is the error string written on a timed-out job
	TimeoutError = "timeout"

	// sweepLimit bounds how many jobs one sweep inspects per status
	sweepLimit = 1000
)

// Watchdog periodically scans for stuck jobs and fails them
type Watchdog struct {
	store    jobs.Store
	hub      *hub.StatusHub
	budget   time.Duration
	interval time.Duration
}

// New creates a watchdog; zero budget or interval fall back to the defaults
func New(store jobs.Store, statusHub *hub.StatusHub, budget, interval time.Duration) *Watchdog {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watchdog{store: store, hub: statusHub, budget: budget, interval: interval}
}

// Start launches the sweep loop; it stops when ctx is cancelled
func (w *Watchdog) Start(ctx context.Context) {
	go w.loop(ctx)
	logger.Infof("watchdog started (budget %s, interval %s)", w.budget, w.interval)
}

func (w *Watchdog) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watchdog stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep inspects all non-terminal jobs once and times out the stale ones.
// A sweep error is logged and never interrupts future sweeps or any job.
func (w *Watchdog) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.budget)
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusInProgress} {
		s := status
		list, err := w.store.List(ctx, &models.ListOptions{Status: &s, Limit: sweepLimit})
		if err != nil {
			logger.Errorf("watchdog sweep failed to list %s jobs: %v", s, err)
			continue
		}
		for i := range list {
			job := &list[i]
			if job.UpdatedAt.After(cutoff) {
				continue
			}
			w.timeout(ctx, job.ID)
		}
	}
}

// timeout applies the terminal timeout write. The mutator refuses terminal
// jobs, which makes the write a compare-and-set: if the pipeline finalized
// between scan and write, this is a no-op and the pipeline's state stands.
func (w *Watchdog) timeout(ctx context.Context, jobID string) {
	updated, err := w.store.Update(ctx, jobID, func(j *models.Job) error {
		if j.Status.Terminal() {
			return models.ErrTerminalStatus
		}
		j.Status = models.JobStatusFailed
		j.Step = models.StepTimeout
		j.Error = TimeoutError
		return nil
	})
	if errors.Is(err, models.ErrTerminalStatus) {
		return
	}
	if err != nil {
		logger.Errorf("watchdog failed to time out job %s: %v", jobID, err)
		return
	}
	logger.WarnWithFields("job timed out", map[string]interface{}{"job_id": jobID, "budget": w.budget.String()})
	w.hub.JobUpdated(updated.Snapshot(), updated.Summary())
}
