package types

import (
	"fmt"
	"strings"
)

// ComplexityLevel buckets how ambitious a requested app is. Ambitious
// requests get scoped down to an MVP by the requirements step.
type ComplexityLevel string

// Complexity levels, roughly in order of effort
const (
	ComplexityTiny      ComplexityLevel = "tiny"
	ComplexitySmall     ComplexityLevel = "small"
	ComplexityMedium    ComplexityLevel = "medium"
	ComplexityAmbitious ComplexityLevel = "ambitious"
)

// EntityField is a single field on a data entity
type EntityField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entity represents a data entity in the generated application
type Entity struct {
	Name        string        `json:"name"`
	Fields      []EntityField `json:"fields,omitempty"`
	Description string        `json:"description,omitempty"`
}

// View represents a page or screen in the generated application
type View struct {
	Name           string   `json:"name"`
	Purpose        string   `json:"purpose"`
	PrimaryActions []string `json:"primary_actions,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// AppSpec is the structured extraction of a user's request. It is produced
// once per job by the requirements step and is read-only input to every
// later step; the repair loop derives a RepairBrief from it instead of
// editing the spec.
type AppSpec struct {
	Goal             string          `json:"goal"`
	UserType         string          `json:"user_type"`
	CoreFeatures     []string        `json:"core_features"`
	Entities         []Entity        `json:"entities,omitempty"`
	Views            []View          `json:"views,omitempty"`
	StackPreferences []string        `json:"stack_preferences,omitempty"`
	NonFunctional    []string        `json:"non_functional_requirements,omitempty"`
	Constraints      []string        `json:"constraints,omitempty"`
	Complexity       ComplexityLevel `json:"complexity_level"`
	ScopeNotes       string          `json:"scope_notes,omitempty"`
	InScope          []string        `json:"in_scope,omitempty"`
	OutOfScope       []string        `json:"out_of_scope,omitempty"`
}

// Summary renders a short human-readable digest of the spec
func (s *AppSpec) Summary() string {
	views := make([]string, len(s.Views))
	for i, v := range s.Views {
		views[i] = v.Name
	}
	entities := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		entities[i] = e.Name
	}
	lines := []string{
		fmt.Sprintf("Goal: %s", s.Goal),
		fmt.Sprintf("User Type: %s", s.UserType),
		fmt.Sprintf("Complexity: %s", s.Complexity),
		fmt.Sprintf("Core Features: %s", strings.Join(s.CoreFeatures, ", ")),
		fmt.Sprintf("Views: %s", strings.Join(views, ", ")),
		fmt.Sprintf("Entities: %s", strings.Join(entities, ", ")),
	}
	if s.ScopeNotes != "" {
		lines = append(lines, fmt.Sprintf("Scope Notes: %s", s.ScopeNotes))
	}
	return strings.Join(lines, "\n")
}

// ViewPlan describes the layout of one view in the UX plan
type ViewPlan struct {
	Name       string   `json:"name"`
	Sections   []string `json:"sections,omitempty"`
	Components []string `json:"components,omitempty"`
}

// UXPlan is the structured design plan derived from an AppSpec by the
// design step
type UXPlan struct {
	Views            []ViewPlan          `json:"views"`
	NavigationFlow   map[string][]string `json:"navigation_flow,omitempty"`
	ComponentLibrary []string            `json:"component_library,omitempty"`
}
