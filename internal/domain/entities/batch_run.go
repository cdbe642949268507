package entities

import "time"

// BatchRun statuses
const (
	BatchRunRunning   = "running"
	BatchRunSucceeded = "succeeded"
	BatchRunFailed    = "failed"
)

// BatchRun is the ledger record of one batch pass.
type BatchRun struct {
	ID         string     `json:"id" db:"id"`
	Action     ActionKind `json:"action" db:"action"`
	Query      string     `json:"query" db:"query"`
	Status     string     `json:"status" db:"status"`
	Total      int        `json:"total" db:"total"`
	Completed  int        `json:"completed" db:"completed"`
	Deferred   int        `json:"deferred" db:"deferred"`
	Skipped    int        `json:"skipped" db:"skipped"`
	Failed     int        `json:"failed" db:"failed"`
	LastError  string     `json:"last_error,omitempty" db:"last_error"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}
