package types

import "fmt"

// RedFlag is a problem the reviewer found in a generated artifact. Blocking
// flags veto approval regardless of score.
type RedFlag struct {
	Description string `json:"description"`
	Blocking    bool   `json:"blocking"`
}

// ReviewResult is the reviewer's verdict for one iteration. One is retained
// per iteration so the best one can be chosen if approval never happens.
type ReviewResult struct {
	Scores          map[string]int `json:"scores"`
	Approved        bool           `json:"approved"`
	RedFlags        []RedFlag      `json:"red_flags,omitempty"`
	MissingFeatures []string       `json:"missing_features,omitempty"`
	Feedback        string         `json:"feedback,omitempty"`
	Iteration       int            `json:"iteration"`
}

// AggregateScore is the mean of all score dimensions, 0 when none exist
func (r *ReviewResult) AggregateScore() int {
	if len(r.Scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range r.Scores {
		total += s
	}
	return total / len(r.Scores)
}

// HasBlockingFlags reports whether any red flag is marked blocking
func (r *ReviewResult) HasBlockingFlags() bool {
	for _, f := range r.RedFlags {
		if f.Blocking {
			return true
		}
	}
	return false
}

// RepairBrief is the diff between what the AppSpec asked for and what the
// latest review found. It is consumed by exactly one code-generation call
// and discarded afterwards.
type RepairBrief struct {
	Issues        []string `json:"issues"`
	FocusFeatures []string `json:"focus_features,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Iteration     int      `json:"iteration"`
}

// BuildRepairBrief derives the brief for the next code-generation call from
// a rejected review
func BuildRepairBrief(spec *AppSpec, review *ReviewResult) *RepairBrief {
	brief := &RepairBrief{
		Iteration: review.Iteration + 1,
		Notes:     review.Feedback,
	}
	for _, flag := range review.RedFlags {
		brief.Issues = append(brief.Issues, flag.Description)
	}
	for _, missing := range review.MissingFeatures {
		brief.Issues = append(brief.Issues, fmt.Sprintf("missing feature: %s", missing))
		for _, feat := range spec.CoreFeatures {
			if feat == missing {
				brief.FocusFeatures = append(brief.FocusFeatures, feat)
			}
		}
	}
	return brief
}
