// Package models defines the persisted job record and its invariants
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appforge/forge/internal/types"
)

// JobCreatedAtField is the database field name for the job creation timestamp
const JobCreatedAtField = "created_at"

// MaxIterations bounds how many review attempts a job may consume
const MaxIterations = 3

// ErrTerminalStatus is returned when a write would mutate a job that already
// reached complete or failed
var ErrTerminalStatus = errors.New("job is in a terminal status")

// JobStatus represents the current state of a job in the system
type JobStatus int

// Job status constants. The order is load-bearing: a job's status may only
// move forward through it and never leaves a terminal value.
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusPending indicates the job is created but not yet running
	JobStatusPending
	// JobStatusInProgress indicates the pipeline is executing
	JobStatusInProgress
	// JobStatusComplete indicates the job finished with an artifact
	JobStatusComplete
	// JobStatusFailed indicates the job terminated without an artifact
	JobStatusFailed
)

var jobStatusNames = []string{"unknown", "pending", "in_progress", "complete", "failed"}

// Pipeline step identifiers recorded on the job as it progresses
const (
	StepInitializing = "initializing"
	StepRequirements = "requirements"
	StepDesign       = "design"
	StepCoding       = "coding"
	StepValidating   = "validating"
	StepReviewing    = "reviewing"
	StepPackaging    = "packaging"
	StepDeploying    = "deploying"
	StepComplete     = "complete"
	StepTimeout      = "timeout"
	StepError        = "error"
)

// Job is the durable record of one generation request. It is mutated only
// by the pipeline goroutine holding the job's run lock and, conditionally,
// by the watchdog.
type Job struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Prompt         string          `json:"prompt" gorm:"not null;type:text"`
	Threshold      int             `json:"threshold" gorm:"not null;default:80"`
	Attachments    []string        `json:"attachments,omitempty" gorm:"serializer:json"`
	OwnerID        string          `json:"owner_id,omitempty" gorm:"index"`
	Status         JobStatus       `json:"status" gorm:"index"`
	Step           string          `json:"step"`
	IterationCount int             `json:"iteration_count"`
	BestScore      int             `json:"best_score"`
	DownloadURL    string          `json:"download_url,omitempty"`
	GithubURL      string          `json:"github_url,omitempty"`
	DeploymentURL  string          `json:"deployment_url,omitempty"`
	Error          string          `json:"error,omitempty" gorm:"type:text"`
	Annotation     string          `json:"annotation,omitempty" gorm:"type:text"`
	Result         json.RawMessage `json:"result,omitempty" gorm:"serializer:json"`
	CreatedAt      time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terminal reports whether the status is complete or failed
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

func (s JobStatus) String() string {
	if int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// ParseJobStatus converts a string representation of a job status to JobStatus
func ParseJobStatus(str string) (JobStatus, error) {
	for i, name := range jobStatusNames {
		if name == str {
			return JobStatus(i), nil
		}
	}
	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// SetStatus advances the job's status. Terminal statuses are immutable and
// the status never moves backward; violations return an error and leave the
// job untouched.
func (j *Job) SetStatus(next JobStatus) error {
	if j.Status.Terminal() {
		return ErrTerminalStatus
	}
	if next < j.Status {
		return fmt.Errorf("status cannot regress from %s to %s", j.Status, next)
	}
	j.Status = next
	return nil
}

// Snapshot derives the externally visible projection of the job
func (j *Job) Snapshot() types.JobStatusSnapshot {
	return types.JobStatusSnapshot{
		JobID:         j.ID,
		Status:        j.Status.String(),
		Step:          j.Step,
		DownloadURL:   types.OptionalString(j.DownloadURL),
		GithubURL:     types.OptionalString(j.GithubURL),
		DeploymentURL: types.OptionalString(j.DeploymentURL),
		Error:         types.OptionalString(j.Error),
	}
}

// Summary derives the list-view projection of the job
func (j *Job) Summary() types.JobSummary {
	return types.JobSummary{
		JobID:     j.ID,
		Prompt:    j.Prompt,
		Status:    j.Status.String(),
		Step:      j.Step,
		Error:     types.OptionalString(j.Error),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
