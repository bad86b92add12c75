package models

const (
	// DefaultLimit is the max number of rows returned by a listing call when
	// the caller does not specify one
	DefaultLimit = 50
)

// ListOptions represents pagination and filtering options for list operations
type ListOptions struct {
	Limit   int        `json:"limit"`             // Number of items to return
	Offset  int        `json:"offset"`            // Number of items to skip
	Status  *JobStatus `json:"status,omitempty"`  // Filter by job status
	OwnerID string     `json:"owner_id,omitempty"` // Filter by caller identity
	Query   string     `json:"query,omitempty"`   // Substring match over the prompt
}

// Normalize clamps pagination values to sane bounds
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 || o.Limit > DefaultLimit*20 {
		o.Limit = DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
