package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued              JobStatus = "queued"
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// Terminal reports whether a job has finished. Counters are frozen once a
// job is terminal.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	}
	return false
}

// ScrapeJob is one bounded run of the orchestrator across a fixed set of
// dealer URLs. It is the single durable source of truth for job status;
// polling clients observe monotonic progress.
type ScrapeJob struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	DealerURLs       []string   `json:"dealer_urls" db:"dealer_urls"`
	MaxPerDealer     int        `json:"max_per_dealer" db:"max_per_dealer"`
	Status           JobStatus  `json:"status" db:"status"`
	Progress         int        `json:"progress" db:"progress"` // 0-100
	DealersTotal     int        `json:"dealers_total" db:"dealers_total"`
	DealersCompleted int        `json:"dealers_completed" db:"dealers_completed"`
	VehiclesFound    int        `json:"vehicles_found" db:"vehicles_found"`
	VehiclesAdded    int        `json:"vehicles_added" db:"vehicles_added"`
	VehiclesUpdated  int        `json:"vehicles_updated" db:"vehicles_updated"`
	VehiclesSkipped  int        `json:"vehicles_skipped" db:"vehicles_skipped"`
	ImagesScraped    int        `json:"images_scraped" db:"images_scraped"`
	ErrorMessage     string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at" db:"completed_at"`
}
