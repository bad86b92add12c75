// Package orchestrator drives the per-job generation pipeline: requirements
// extraction, design, code generation, review, the bounded repair loop and
// finalize. It owns per-job mutual exclusion and is, together with the
// watchdog's conditional timeout write, the only writer of job records.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/appforge/forge/internal/agents"
	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/logger"
	"github.com/appforge/forge/internal/packager"
	"github.com/appforge/forge/internal/types"
)

// ErrAlreadyRunning is returned when a pipeline run is requested for a job
// whose pipeline is already executing
var ErrAlreadyRunning = errors.New("job pipeline already running")

// DefaultThreshold is the review approval threshold applied when a request
// does not carry one
const DefaultThreshold = 80

// Orchestrator sequences pipeline steps and fans resulting status changes
// out through the hub
type Orchestrator struct {
	store  jobs.Store
	port   agents.Port
	hub    *hub.StatusHub
	pack   packager.Packager
	pusher packager.RepoPusher // nil disables the push step

	mu      sync.Mutex
	running map[string]struct{}
}

// New creates an orchestrator. pusher may be nil, which skips the
// repository push during finalize.
func New(store jobs.Store, port agents.Port, statusHub *hub.StatusHub, pack packager.Packager, pusher packager.RepoPusher) *Orchestrator {
	return &Orchestrator{
		store:   store,
		port:    port,
		hub:     statusHub,
		pack:    pack,
		pusher:  pusher,
		running: make(map[string]struct{}),
	}
}

// StartJob durably creates the job in pending and launches its pipeline in
// the background. It never blocks on an agent call.
func (o *Orchestrator) StartJob(ctx context.Context, prompt string, threshold int, attachments []string, ownerID string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 100 {
		return "", fmt.Errorf("threshold must be between 0 and 100")
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		Prompt:      prompt,
		Threshold:   threshold,
		Attachments: attachments,
		OwnerID:     ownerID,
		Status:      models.JobStatusPending,
		Step:        models.StepInitializing,
	}
	if err := o.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	o.hub.JobCreated(job.Summary())

	// The pipeline outlives the originating request
	go func() {
		if err := o.Run(context.Background(), job.ID); err != nil &&
			!errors.Is(err, ErrAlreadyRunning) && !errors.Is(err, models.ErrTerminalStatus) {
			logger.Errorf("pipeline for job %s ended with error: %v", job.ID, err)
		}
	}()
	return job.ID, nil
}

// Run executes the pipeline for one job. The job-scoped run lock is held for
// the whole run; a concurrent duplicate returns ErrAlreadyRunning without
// touching the job.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (err error) {
	if !o.acquire(jobID) {
		return ErrAlreadyRunning
	}
	defer o.release(jobID)

	// Nothing raised inside a pipeline may escape its goroutine; panics
	// become a terminal failed write like any other pipeline error.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("pipeline for job %s panicked: %v", jobID, r)
			o.failJob(ctx, jobID, models.StepError, "internal pipeline error")
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	return o.run(ctx, jobID)
}

func (o *Orchestrator) run(ctx context.Context, jobID string) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	audit := auditTrail{}

	// Requirements: no spec means no pipeline, so any failure is terminal
	if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepRequirements, nil); err != nil {
		return err
	}
	spec, err := o.port.Requirements(ctx, agents.RequirementsRequest{Prompt: job.Prompt, Attachments: job.Attachments})
	if err != nil {
		return o.agentFailure(ctx, jobID, models.StepRequirements, "requirements analysis failed", err)
	}
	audit.Spec = spec
	if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepDesign, func(j *models.Job) {
		j.Result = audit.marshal()
	}); err != nil {
		return err
	}

	plan, err := o.port.Plan(ctx, agents.PlanRequest{Spec: spec})
	if err != nil {
		return o.agentFailure(ctx, jobID, models.StepDesign, "design planning failed", err)
	}

	var (
		repair       *types.RepairBrief
		bestArtifact *types.Artifact
		bestScore    = -1
		lastReview   *types.ReviewResult
	)

	for iteration := 0; iteration < models.MaxIterations; iteration++ {
		if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepCoding, nil); err != nil {
			return err
		}
		artifact, err := o.port.Code(ctx, agents.CodeRequest{Spec: spec, Plan: plan, Repair: repair})
		repair = nil
		if err != nil {
			return o.agentFailure(ctx, jobID, models.StepCoding, "code generation failed", err)
		}

		// A missing entry point is a validation failure, not an agent
		// failure: regenerating without better guidance would just burn the
		// iteration budget, so it is terminal immediately.
		if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepValidating, nil); err != nil {
			return err
		}
		if _, ok := artifact.EntryPoint(); !ok {
			return o.failJob(ctx, jobID, models.StepValidating,
				"generated app has no runnable entry point (expected app.py, main.py or index.js)")
		}

		if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepReviewing, nil); err != nil {
			return err
		}
		review, err := o.port.Review(ctx, agents.ReviewRequest{
			Spec: spec, Artifact: artifact, Threshold: job.Threshold, Iteration: iteration,
		})
		if err != nil {
			return o.agentFailure(ctx, jobID, models.StepReviewing, "review failed", err)
		}
		lastReview = review

		score := review.AggregateScore()
		if score > bestScore {
			bestScore = score
			bestArtifact = artifact
		}
		audit.Iterations = append(audit.Iterations, iterationRecord{
			Score:    score,
			Approved: review.Approved,
			Feedback: review.Feedback,
			Scores:   review.Scores,
		})

		// One durable progress write per completed review attempt; this also
		// resets the watchdog's staleness clock.
		count := iteration + 1
		if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepReviewing, func(j *models.Job) {
			j.IterationCount = count
			j.BestScore = bestScore
			j.Result = audit.marshal()
		}); err != nil {
			return err
		}

		if review.Approved {
			return o.finalize(ctx, jobID, job.Prompt, artifact, "")
		}
		if count < models.MaxIterations {
			repair = types.BuildRepairBrief(spec, review)
		}
	}

	// The loop never converged: deliver the best iteration rather than
	// failing a job that produced usable output.
	annotation := fmt.Sprintf(
		"approval threshold %d not met after %d iterations; delivering best-scoring iteration (score %d)",
		job.Threshold, models.MaxIterations, bestScore)
	if lastReview != nil && lastReview.Feedback != "" {
		annotation += "; " + lastReview.Feedback
	}
	return o.finalize(ctx, jobID, job.Prompt, bestArtifact, annotation)
}

// finalize packages the chosen artifact, optionally pushes it, and writes
// the terminal complete status. Collaborator failures downgrade finalize to
// failed with a summarized error.
func (o *Orchestrator) finalize(ctx context.Context, jobID, prompt string, artifact *types.Artifact, annotation string) error {
	if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepPackaging, nil); err != nil {
		return err
	}
	downloadURL, err := o.pack.Package(ctx, jobID, artifact)
	if err != nil {
		logger.ErrorWithFields("packaging failed", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return o.failJob(ctx, jobID, models.StepPackaging, "packaging failed: "+summarize(err))
	}
	if _, err := o.transition(ctx, jobID, models.JobStatusInProgress, models.StepDeploying, func(j *models.Job) {
		j.DownloadURL = downloadURL
	}); err != nil {
		return err
	}

	var repoURL string
	if o.pusher != nil {
		repoURL, err = o.pusher.Push(ctx, jobID, prompt, artifact)
		if err != nil {
			logger.ErrorWithFields("repository push failed", map[string]interface{}{"job_id": jobID, "error": err.Error()})
			return o.failJob(ctx, jobID, models.StepDeploying, "repository push failed: "+summarize(err))
		}
	}

	_, err = o.transition(ctx, jobID, models.JobStatusComplete, models.StepComplete, func(j *models.Job) {
		j.GithubURL = repoURL
		j.Annotation = annotation
	})
	return err
}

// transition performs one atomic step change: mutate and persist the job,
// then hand the resulting snapshot to the hub, in that order. A job that
// reached a terminal status through another writer aborts the transition
// with ErrTerminalStatus.
func (o *Orchestrator) transition(ctx context.Context, jobID string, status models.JobStatus, step string, extra func(*models.Job)) (*models.Job, error) {
	job, err := o.store.Update(ctx, jobID, func(j *models.Job) error {
		if err := j.SetStatus(status); err != nil {
			return err
		}
		j.Step = step
		if extra != nil {
			extra(j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.hub.JobUpdated(job.Snapshot(), job.Summary())
	return job, nil
}

// agentFailure converts an opaque capability error into a terminal failed
// write. The summarized message is what clients see; the cause goes to the
// log only.
func (o *Orchestrator) agentFailure(ctx context.Context, jobID, step, summary string, cause error) error {
	logger.ErrorWithFields("agent call failed", map[string]interface{}{
		"job_id": jobID,
		"step":   step,
		"error":  cause.Error(),
	})
	return o.failJob(ctx, jobID, step, summary)
}

func (o *Orchestrator) failJob(ctx context.Context, jobID, step, message string) error {
	_, err := o.transition(ctx, jobID, models.JobStatusFailed, step, func(j *models.Job) {
		j.Error = message
	})
	if errors.Is(err, models.ErrTerminalStatus) {
		// Another writer (the watchdog) got there first; its terminal state stands
		return nil
	}
	return err
}

func (o *Orchestrator) acquire(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, held := o.running[jobID]; held {
		return false
	}
	o.running[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, jobID)
}

func summarize(err error) string {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// auditTrail is the iteration history persisted on the job record for
// after-the-fact inspection; correctness never depends on it
type auditTrail struct {
	Spec       *types.AppSpec    `json:"spec,omitempty"`
	Iterations []iterationRecord `json:"iterations,omitempty"`
}

type iterationRecord struct {
	Score    int            `json:"score"`
	Approved bool           `json:"approved"`
	Feedback string         `json:"feedback,omitempty"`
	Scores   map[string]int `json:"scores,omitempty"`
}

func (a *auditTrail) marshal() json.RawMessage {
	data, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	return data
}
