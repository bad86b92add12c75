package types

import "time"

// Stream message types emitted over the push surfaces
const (
	// MessageStatusUpdate is sent on a per-job stream when the job changes
	MessageStatusUpdate = "status_update"
	// MessageJobCreated is sent on the aggregate stream when a job is created
	MessageJobCreated = "job_created"
	// MessageJobUpdated is sent on the aggregate stream when a job changes
	MessageJobUpdated = "job_updated"
)

// JobStatusSnapshot is the externally visible projection of a job at one
// instant. It is the unit exchanged over both the pull and push delivery
// surfaces and is derived from the job record alone, never from pipeline
// internals.
type JobStatusSnapshot struct {
	JobID         string  `json:"job_id"`
	Status        string  `json:"status"`
	Step          string  `json:"step"`
	DownloadURL   *string `json:"download_url"`
	GithubURL     *string `json:"github_url"`
	DeploymentURL *string `json:"deployment_url"`
	Error         *string `json:"error"`
}

// JobSummary is the list-view projection of a job, used by the jobs listing
// endpoint and the aggregate stream
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"`
	Step      string    `json:"step"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StreamMessage is the envelope for every push delivery
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// OptionalString maps an empty string to a JSON null
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
