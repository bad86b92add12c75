package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/forge/internal/types"
)

// Local is a deterministic, template-based Port implementation. It keeps the
// service runnable end-to-end without access to an external model; the
// artifacts it produces are skeletal but valid.
type Local struct{}

// NewLocal creates the built-in agent suite
func NewLocal() *Local {
	return &Local{}
}

var _ Port = (*Local)(nil)

// Requirements extracts a naive AppSpec from the prompt
func (l *Local) Requirements(_ context.Context, req RequirementsRequest) (*types.AppSpec, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("empty prompt")
	}

	features := splitFeatures(prompt)
	complexity := types.ComplexitySmall
	switch {
	case len(features) <= 1 && len(prompt) < 80:
		complexity = types.ComplexityTiny
	case len(features) > 5:
		complexity = types.ComplexityAmbitious
	case len(features) > 3:
		complexity = types.ComplexityMedium
	}

	spec := &types.AppSpec{
		Goal:         prompt,
		UserType:     "individual users",
		CoreFeatures: features,
		Entities: []types.Entity{
			{Name: "Item", Fields: []types.EntityField{
				{Name: "id", Type: "string"},
				{Name: "title", Type: "string"},
				{Name: "created_at", Type: "datetime"},
			}},
		},
		Views: []types.View{
			{Name: "Main", Purpose: "primary workspace", PrimaryActions: features},
		},
		Complexity: complexity,
	}
	if complexity == types.ComplexityAmbitious {
		spec.ScopeNotes = "request scoped down to an MVP covering the first features only"
		spec.InScope = features[:3]
		spec.OutOfScope = features[3:]
	}
	return spec, nil
}

// Plan derives a one-section-per-view UX plan from the spec
func (l *Local) Plan(_ context.Context, req PlanRequest) (*types.UXPlan, error) {
	if req.Spec == nil {
		return nil, fmt.Errorf("plan requires a spec")
	}
	plan := &types.UXPlan{
		NavigationFlow:   map[string][]string{},
		ComponentLibrary: []string{"Header", "List", "Form"},
	}
	for _, view := range req.Spec.Views {
		plan.Views = append(plan.Views, types.ViewPlan{
			Name:       view.Name,
			Sections:   []string{"header", "content", "footer"},
			Components: view.PrimaryActions,
		})
		plan.NavigationFlow[view.Name] = []string{}
	}
	return plan, nil
}

// Code renders a small static project from the spec and plan. A repair brief
// folds its issue list into the generated README so repeated iterations
// produce observably different artifacts.
func (l *Local) Code(_ context.Context, req CodeRequest) (*types.Artifact, error) {
	if req.Spec == nil || req.Plan == nil {
		return nil, fmt.Errorf("code generation requires a spec and a plan")
	}

	var readme strings.Builder
	readme.WriteString(fmt.Sprintf("# %s\n\n", req.Spec.Goal))
	readme.WriteString("## Features\n")
	for _, feat := range req.Spec.CoreFeatures {
		readme.WriteString(fmt.Sprintf("- %s\n", feat))
	}
	if req.Repair != nil {
		readme.WriteString("\n## Revision notes\n")
		for _, issue := range req.Repair.Issues {
			readme.WriteString(fmt.Sprintf("- addressed: %s\n", issue))
		}
	}

	var js strings.Builder
	js.WriteString("// Generated application entry point\n")
	js.WriteString(fmt.Sprintf("const features = %s;\n", jsStringArray(req.Spec.CoreFeatures)))
	js.WriteString("function render() {\n")
	js.WriteString("  const root = document.getElementById('app');\n")
	js.WriteString("  root.innerHTML = features.map(f => `<li>${f}</li>`).join('');\n")
	js.WriteString("}\n")
	js.WriteString("document.addEventListener('DOMContentLoaded', render);\n")

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<ul id="app"></ul>
<script src="index.js"></script>
</body>
</html>
`, req.Spec.Goal)

	return &types.Artifact{Files: map[string]string{
		"index.js":   js.String(),
		"index.html": html,
		"README.md":  readme.String(),
	}}, nil
}

// Review scores the artifact on feature coverage and structure. Iterations
// after the first score higher because the repair brief feeds back into the
// artifact content.
func (l *Local) Review(_ context.Context, req ReviewRequest) (*types.ReviewResult, error) {
	if req.Artifact == nil {
		return nil, fmt.Errorf("review requires an artifact")
	}

	corpus := strings.ToLower(flatten(req.Artifact))
	covered := 0
	var missing []string
	for _, feat := range req.Spec.CoreFeatures {
		if strings.Contains(corpus, strings.ToLower(feat)) {
			covered++
		} else {
			missing = append(missing, feat)
		}
	}
	coverage := 100
	if len(req.Spec.CoreFeatures) > 0 {
		coverage = covered * 100 / len(req.Spec.CoreFeatures)
	}

	structure := 60
	if _, ok := req.Artifact.EntryPoint(); ok {
		structure += 20
	}
	if _, ok := req.Artifact.Files["README.md"]; ok {
		structure += 15
	}
	if req.Iteration > 0 {
		structure += 5
	}

	result := &types.ReviewResult{
		Scores:          map[string]int{"coverage": coverage, "structure": structure},
		MissingFeatures: missing,
		Iteration:       req.Iteration,
	}
	if _, ok := req.Artifact.EntryPoint(); !ok {
		result.RedFlags = append(result.RedFlags, types.RedFlag{
			Description: "artifact has no runnable entry point",
			Blocking:    true,
		})
	}
	result.Approved = result.AggregateScore() >= req.Threshold && !result.HasBlockingFlags()
	if result.Approved {
		result.Feedback = fmt.Sprintf("approved on iteration %d", req.Iteration+1)
	} else {
		result.Feedback = fmt.Sprintf("iteration %d below threshold %d", req.Iteration+1, req.Threshold)
	}
	return result, nil
}

func splitFeatures(prompt string) []string {
	cleaned := strings.NewReplacer(",", "\n", " and ", "\n", ";", "\n").Replace(prompt)
	var features []string
	for _, part := range strings.Split(cleaned, "\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			features = append(features, part)
		}
	}
	if len(features) == 0 {
		features = []string{prompt}
	}
	return features
}

func flatten(artifact *types.Artifact) string {
	var b strings.Builder
	for path, content := range artifact.Files {
		b.WriteString(path)
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
