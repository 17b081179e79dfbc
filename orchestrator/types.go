package orchestrator

import "errors"

// Session status values, in lifecycle order.
const (
	StatusCreated    = "created"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrStillProcessing = errors.New("session is still processing")
	ErrPanic           = errors.New("analysis panicked")
)

// SessionRef names a session. Regular and scenario sessions live in
// separate namespaces, so the same ID may exist in both.
type SessionRef struct {
	ID       string
	Scenario bool
}

func (r SessionRef) String() string {
	if r.Scenario {
		return "scenario session " + r.ID
	}
	return "session " + r.ID
}

// StatusRecord is the per-session status document.
type StatusRecord struct {
	SessionID  string  `json:"session_id"`
	Scenario   bool    `json:"-"`
	Status     string  `json:"status"`
	CreatedAt  float64 `json:"created_at"` // unix seconds
	UpdatedAt  float64 `json:"updated_at,omitempty"`
	ScenarioID string  `json:"scenario_id,omitempty"`
	JobID      string  `json:"job_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func (r StatusRecord) Ref() SessionRef { return SessionRef{ID: r.SessionID, Scenario: r.Scenario} }

// Job names one analysis run.
type Job struct {
	ID         string
	SessionID  string
	Scenario   bool
	ScenarioID string // overrides the status record when set
}
