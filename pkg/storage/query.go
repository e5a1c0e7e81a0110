package storage

import "time"

const (
	// DefaultPageLimit is used when a list request does not set a limit.
	DefaultPageLimit = 50

	// MaxPageLimit caps every list request.
	MaxPageLimit = 200
)

// Page selects a slice of a list result.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum limit and clamps a negative
// offset to zero.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// BoardFilter scopes ListBoards.
type BoardFilter struct {
	OrgID string
	Page  Page
}

// AgentFilter scopes ListAgents. Empty fields do not filter.
type AgentFilter struct {
	OrgID   string
	BoardID string
	Status  string
	Page    Page
}

// ApprovalFilter scopes ListApprovals.
type ApprovalFilter struct {
	BoardID string
	Status  string
	Page    Page
}

// MemoryFilter scopes ListMemory.
type MemoryFilter struct {
	BoardID string
	IsChat  *bool
	Page    Page
}

// TaskFilter scopes ListTasks.
type TaskFilter struct {
	BoardID string
	Status  string
	Page    Page
}

// ActivityFilter scopes ListActivity.
type ActivityFilter struct {
	OrgID     string
	BoardID   string
	TaskID    string
	EventType string
	Page      Page
}

// ChangeQuery is the incremental query behind a stream source. Since is
// inclusive. Fields that do not apply to a table are ignored.
type ChangeQuery struct {
	Since     time.Time
	OrgID     string
	BoardID   string
	IsChat    *bool
	EventType string
}
