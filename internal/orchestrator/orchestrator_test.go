package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/forge/internal/agents"
	"github.com/appforge/forge/internal/db/models"
	"github.com/appforge/forge/internal/hub"
	"github.com/appforge/forge/internal/jobs"
	"github.com/appforge/forge/internal/types"
)

// scriptedPort is an agents.Port whose review verdicts and failures are fixed
// per iteration, so pipeline outcomes are fully deterministic.
type scriptedPort struct {
	mu sync.Mutex

	scores   []int  // aggregate score per review call
	approved []bool // verdict per review call
	codeErrs []error
	noEntry  bool
	reqErr   error
	planErr  error

	// gate, when set, blocks Requirements until released
	gate chan struct{}

	codeCalls   int
	reviewCalls int
	repairs     []*types.RepairBrief
}

func (p *scriptedPort) Requirements(_ context.Context, req agents.RequirementsRequest) (*types.AppSpec, error) {
	if p.gate != nil {
		<-p.gate
	}
	if p.reqErr != nil {
		return nil, p.reqErr
	}
	return &types.AppSpec{Goal: req.Prompt, CoreFeatures: []string{"list items"}}, nil
}

func (p *scriptedPort) Plan(_ context.Context, _ agents.PlanRequest) (*types.UXPlan, error) {
	if p.planErr != nil {
		return nil, p.planErr
	}
	return &types.UXPlan{}, nil
}

func (p *scriptedPort) Code(_ context.Context, req agents.CodeRequest) (*types.Artifact, error) {
	p.mu.Lock()
	call := p.codeCalls
	p.codeCalls++
	p.repairs = append(p.repairs, req.Repair)
	p.mu.Unlock()

	if call < len(p.codeErrs) && p.codeErrs[call] != nil {
		return nil, p.codeErrs[call]
	}
	if p.noEntry {
		return &types.Artifact{Files: map[string]string{"notes.txt": "nothing runnable"}}, nil
	}
	return &types.Artifact{Files: map[string]string{
		"index.js": fmt.Sprintf("// iteration %d", call),
	}}, nil
}

func (p *scriptedPort) Review(_ context.Context, _ agents.ReviewRequest) (*types.ReviewResult, error) {
	p.mu.Lock()
	call := p.reviewCalls
	p.reviewCalls++
	p.mu.Unlock()

	if call >= len(p.scores) {
		return nil, fmt.Errorf("unscripted review call %d", call)
	}
	return &types.ReviewResult{
		Scores:    map[string]int{"overall": p.scores[call]},
		Approved:  p.approved[call],
		Feedback:  fmt.Sprintf("review %d", call),
		Iteration: call,
	}, nil
}

// recordingPackager captures the artifact chosen for delivery
type recordingPackager struct {
	mu       sync.Mutex
	err      error
	packaged *types.Artifact
}

func (p *recordingPackager) Package(_ context.Context, jobID string, artifact *types.Artifact) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.packaged = artifact
	return "/downloads/" + jobID + ".zip", nil
}

type fakePusher struct {
	err error
	url string
}

func (p *fakePusher) Push(_ context.Context, jobID, _ string, _ *types.Artifact) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.url != "" {
		return p.url, nil
	}
	return "https://github.com/generated/" + jobID, nil
}

type fixture struct {
	store *jobs.MemoryStore
	hub   *hub.StatusHub
	port  *scriptedPort
	pack  *recordingPackager
	orch  *Orchestrator
}

func newFixture(t *testing.T, port *scriptedPort) *fixture {
	t.Helper()
	f := &fixture{
		store: jobs.NewMemoryStore(),
		hub:   hub.New(),
		port:  port,
		pack:  &recordingPackager{},
	}
	f.orch = New(f.store, f.port, f.hub, f.pack, nil)
	return f
}

func (f *fixture) seedJob(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.Create(context.Background(), &models.Job{
		ID:        id,
		Prompt:    "build a todo app",
		Threshold: DefaultThreshold,
		Status:    models.JobStatusPending,
		Step:      models.StepInitializing,
	}))
}

func TestRun_ApprovedOnSecondIteration(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{65, 85}, approved: []bool{false, true}})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, job.Status)
	assert.Equal(t, models.StepComplete, job.Step)
	assert.Equal(t, 2, job.IterationCount)
	assert.Equal(t, 85, job.BestScore)
	assert.Equal(t, "/downloads/j1.zip", job.DownloadURL)
	assert.Empty(t, job.Error)
	assert.Empty(t, job.Annotation)

	// The repair brief exists only for the retry, never for the first attempt
	require.Len(t, f.port.repairs, 2)
	assert.Nil(t, f.port.repairs[0])
	require.NotNil(t, f.port.repairs[1])
	assert.Equal(t, 1, f.port.repairs[1].Iteration)
}

func TestRun_NonConvergenceDeliversBestIteration(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{50, 60, 55}, approved: []bool{false, false, false}})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, job.Status, "exhausted iterations still deliver")
	assert.Equal(t, models.StepComplete, job.Step)
	assert.Equal(t, models.MaxIterations, job.IterationCount)
	assert.Equal(t, 60, job.BestScore)
	assert.Empty(t, job.Error, "non-convergence is not an error")
	assert.Contains(t, job.Annotation, "not met")
	assert.NotEmpty(t, job.DownloadURL)

	// The second iteration scored highest and is the one packaged
	require.NotNil(t, f.pack.packaged)
	assert.Equal(t, "// iteration 1", f.pack.packaged.Files["index.js"])
}

func TestRun_RequirementsFailure(t *testing.T) {
	f := newFixture(t, &scriptedPort{reqErr: fmt.Errorf("model unavailable")})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepRequirements, job.Step)
	assert.Equal(t, "requirements analysis failed", job.Error)
	assert.Equal(t, 0, job.IterationCount)
}

func TestRun_CodeFailureOnFirstIteration(t *testing.T) {
	f := newFixture(t, &scriptedPort{
		scores:   []int{0},
		approved: []bool{false},
		codeErrs: []error{fmt.Errorf("generation blew up")},
	})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepCoding, job.Step)
	assert.Equal(t, "code generation failed", job.Error)
	assert.Equal(t, 0, job.IterationCount, "no review attempt completed")
	assert.Equal(t, 0, f.port.reviewCalls)
}

func TestRun_MissingEntryPointFailsValidation(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}, noEntry: true})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepValidating, job.Step)
	assert.Contains(t, job.Error, "no runnable entry point")
	assert.Equal(t, 0, f.port.reviewCalls, "an invalid artifact never reaches review")
}

func TestRun_PackagingFailure(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})
	f.pack.err = fmt.Errorf("disk full")
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepPackaging, job.Step)
	assert.Contains(t, job.Error, "packaging failed")
}

func TestRun_PushFailure(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})
	f.orch = New(f.store, f.port, f.hub, f.pack, &fakePusher{err: fmt.Errorf("403 from API")})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepDeploying, job.Step)
	assert.Contains(t, job.Error, "repository push failed")
}

func TestRun_PushSuccessRecordsRepoURL(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})
	f.orch = New(f.store, f.port, f.hub, f.pack, &fakePusher{url: "https://github.com/acme/todo"})
	f.seedJob(t, "j1")

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, job.Status)
	assert.Equal(t, "https://github.com/acme/todo", job.GithubURL)
}

func TestRun_DuplicateRunIsRejected(t *testing.T) {
	port := &scriptedPort{scores: []int{90}, approved: []bool{true}, gate: make(chan struct{})}
	f := newFixture(t, port)
	f.seedJob(t, "j1")

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(context.Background(), "j1") }()

	// Wait until the first run holds the job lock inside Requirements
	require.Eventually(t, func() bool {
		f.orch.mu.Lock()
		defer f.orch.mu.Unlock()
		_, held := f.orch.running["j1"]
		return held
	}, time.Second, time.Millisecond)

	err := f.orch.Run(context.Background(), "j1")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(port.gate)
	require.NoError(t, <-done)

	job, err := f.store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, job.Status)
	assert.Equal(t, 1, port.codeCalls, "the rejected duplicate must not touch the pipeline")
}

func TestRun_TerminalJobIsLeftAlone(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})
	require.NoError(t, f.store.Create(context.Background(), &models.Job{
		ID:     "j1",
		Prompt: "already done",
		Status: models.JobStatusFailed,
		Step:   models.StepTimeout,
		Error:  "timeout",
	}))

	err := f.orch.Run(context.Background(), "j1")
	assert.ErrorIs(t, err, models.ErrTerminalStatus)

	job, getErr := f.store.Get(context.Background(), "j1")
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "timeout", job.Error)
	assert.Equal(t, 0, f.port.codeCalls)
}

func TestRun_StatusStreamIsMonotonicAndEndsTerminal(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{65, 85}, approved: []bool{false, true}})
	f.seedJob(t, "j1")

	sub := f.hub.Subscribe("j1")
	defer sub.Cancel()

	require.NoError(t, f.orch.Run(context.Background(), "j1"))

	rank := map[string]int{"pending": 1, "in_progress": 2, "complete": 3, "failed": 3}
	last := 0
	var final types.JobStatusSnapshot
	count := 0
drain:
	for {
		select {
		case msg := <-sub.Updates():
			snap, ok := msg.Data.(types.JobStatusSnapshot)
			require.True(t, ok)
			require.GreaterOrEqual(t, rank[snap.Status], last, "status must never regress over the stream")
			last = rank[snap.Status]
			final = snap
			count++
		default:
			break drain
		}
	}
	require.Greater(t, count, 0)
	assert.Equal(t, "complete", final.Status, "the terminal snapshot is delivered last")
}

func TestStartJob_Validation(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})

	_, err := f.orch.StartJob(context.Background(), "", 0, nil, "")
	assert.Error(t, err)

	_, err = f.orch.StartJob(context.Background(), "valid prompt", 150, nil, "")
	assert.Error(t, err)
}

func TestStartJob_RunsToCompletion(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})

	jobID, err := f.orch.StartJob(context.Background(), "build a notes app", 0, nil, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, job.Threshold)
	assert.Equal(t, "alice", job.OwnerID)

	require.Eventually(t, func() bool {
		job, err := f.store.Get(context.Background(), jobID)
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	job, err = f.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, job.Status)
}

func TestRun_PanicBecomesTerminalFailure(t *testing.T) {
	f := newFixture(t, &scriptedPort{scores: []int{90}, approved: []bool{true}})
	f.orch = New(f.store, panickingPort{}, f.hub, f.pack, nil)
	f.seedJob(t, "j1")

	err := f.orch.Run(context.Background(), "j1")
	assert.Error(t, err)

	job, getErr := f.store.Get(context.Background(), "j1")
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.StepError, job.Step)
	assert.Equal(t, "internal pipeline error", job.Error)
}

type panickingPort struct{}

func (panickingPort) Requirements(context.Context, agents.RequirementsRequest) (*types.AppSpec, error) {
	panic("agent exploded")
}
func (panickingPort) Plan(context.Context, agents.PlanRequest) (*types.UXPlan, error) {
	panic("unreachable")
}
func (panickingPort) Code(context.Context, agents.CodeRequest) (*types.Artifact, error) {
	panic("unreachable")
}
func (panickingPort) Review(context.Context, agents.ReviewRequest) (*types.ReviewResult, error) {
	panic("unreachable")
}
