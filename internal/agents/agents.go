// Package agents defines the opaque capability boundary the pipeline calls
// into. The orchestrator only ever sees the Port interface; what a concrete
// implementation does to produce its result is not this system's concern.
package agents

import (
	"context"

	"github.com/appforge/forge/internal/types"
)

// RequirementsRequest asks for a structured AppSpec extraction of a prompt
type RequirementsRequest struct {
	Prompt      string
	Attachments []string
}

// PlanRequest asks for a UX plan derived from a spec
type PlanRequest struct {
	Spec *types.AppSpec
}

// CodeRequest asks for a generated artifact. Repair is nil on the first
// iteration and carries the previous review's directives afterwards.
type CodeRequest struct {
	Spec   *types.AppSpec
	Plan   *types.UXPlan
	Repair *types.RepairBrief
}

// ReviewRequest asks for a verdict on an artifact against its spec
type ReviewRequest struct {
	Spec      *types.AppSpec
	Artifact  *types.Artifact
	Threshold int
	Iteration int
}

// Port is the capability abstraction for the four pipeline steps. Every call
// either returns a typed result or an error; the pipeline treats any error
// as opaque.
type Port interface {
	Requirements(ctx context.Context, req RequirementsRequest) (*types.AppSpec, error)
	Plan(ctx context.Context, req PlanRequest) (*types.UXPlan, error)
	Code(ctx context.Context, req CodeRequest) (*types.Artifact, error)
	Review(ctx context.Context, req ReviewRequest) (*types.ReviewResult, error)
}
