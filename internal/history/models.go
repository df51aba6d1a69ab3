package history

import "time"

// Status represents the lifecycle of a recorded fetch.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one row of fetch history.
type Record struct {
	ID          int64
	RunID       string
	Magnet      string
	DestDir     string
	Status      Status
	FailureKind string
	Detail      string
	FileCount   int
	TotalBytes  int64
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// FinishInput carries the terminal fields recorded when a fetch ends.
type FinishInput struct {
	Status      Status
	FailureKind string
	Detail      string
	FileCount   int
	TotalBytes  int64
}
