package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/types"
)

// staleBudget makes every existing record look stale to the sweep
const staleBudget = time.Nanosecond

func seedJob(t *testing.T, store *jobs.MemoryStore, id string, status models.JobStatus) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.Job{
		ID:     id,
		Prompt: "stuck job",
		Status: status,
		Step:   models.StepCoding,
	}))
	// Make sure UpdatedAt is strictly older than any later cutoff
	time.Sleep(2 * time.Millisecond)
}

func TestSweep_TimesOutStaleJobs(t *testing.T) {
	store := jobs.NewMemoryStore()
	statusHub := hub.New()
	seedJob(t, store, "stale-running", models.JobStatusInProgress)
	seedJob(t, store, "stale-pending", models.JobStatusPending)

	sub := statusHub.Subscribe("stale-running")
	defer sub.Cancel()

	w := New(store, statusHub, staleBudget, time.Minute)
	w.Sweep(context.Background())

	for _, id := range []string{"stale-running", "stale-pending"} {
		job, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, job.Status)
		assert.Equal(t, models.StepTimeout, job.Step)
		assert.Equal(t, TimeoutError, job.Error)
	}

	// The timeout write is published exactly once
	msg := <-sub.Updates()
	snap, ok := msg.Data.(types.JobStatusSnapshot)
	require.True(t, ok)
	assert.Equal(t, "failed", snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, TimeoutError, *snap.Error)
	assert.Empty(t, sub.Updates())
}

func TestSweep_FreshJobsAreLeftAlone(t *testing.T) {
	store := jobs.NewMemoryStore()
	seedJob(t, store, "fresh", models.JobStatusInProgress)

	w := New(store, hub.New(), time.Hour, time.Minute)
	w.Sweep(context.Background())

	job, err := store.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, job.Status)
	assert.Empty(t, job.Error)
}

func TestSweep_TerminalJobsAreNeverTouched(t *testing.T) {
	store := jobs.NewMemoryStore()
	statusHub := hub.New()
	seedJob(t, store, "done", models.JobStatusComplete)
	seedJob(t, store, "failed", models.JobStatusFailed)

	sub := statusHub.Subscribe("done")
	defer sub.Cancel()

	w := New(store, statusHub, staleBudget, time.Minute)
	w.Sweep(context.Background())

	done, err := store.Get(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, done.Status)
	assert.NotEqual(t, TimeoutError, done.Error)
	assert.Empty(t, sub.Updates(), "a no-op write must not be published")
}

func TestSweep_SecondSweepIsIdempotent(t *testing.T) {
	store := jobs.NewMemoryStore()
	statusHub := hub.New()
	seedJob(t, store, "stale", models.JobStatusInProgress)

	sub := statusHub.Subscribe("stale")
	defer sub.Cancel()

	w := New(store, statusHub, staleBudget, time.Minute)
	w.Sweep(context.Background())
	w.Sweep(context.Background())

	<-sub.Updates()
	assert.Empty(t, sub.Updates(), "an already timed-out job produces no further publishes")
}

func TestNew_DefaultsApply(t *testing.T) {
	w := New(jobs.NewMemoryStore(), hub.New(), 0, 0)
	assert.Equal(t, DefaultBudget, w.budget)
	assert.Equal(t, DefaultInterval, w.interval)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	store := jobs.NewMemoryStore()
	w := New(store, hub.New(), staleBudget, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	seedJob(t, store, "stale", models.JobStatusInProgress)

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), "stale")
		return err == nil && job.Status == models.JobStatusFailed
	}, time.Second, time.Millisecond)
	cancel()
}
