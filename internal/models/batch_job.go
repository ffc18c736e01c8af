package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchJobStatus string

const (
	JobPending   BatchJobStatus = "PENDING"
	JobRunning   BatchJobStatus = "RUNNING"
	JobCompleted BatchJobStatus = "COMPLETED"
	JobFailed    BatchJobStatus = "FAILED"
)

// BatchJob is a durable queue entry: an ordered list of product IDs to
// reconcile, with a cursor so a restarted worker resumes where it left off.
type BatchJob struct {
	ID         string         `json:"id" gorm:"type:uuid;primary_key"`
	ProductIDs []string       `json:"product_ids" gorm:"serializer:json"`
	Cursor     int            `json:"cursor" gorm:"default:0"`
	Remaining  int            `json:"remaining"`
	Status     BatchJobStatus `json:"status" gorm:"default:PENDING;index"`
	Claimed    bool           `json:"claimed" gorm:"default:false"`
	StartedAt  *time.Time     `json:"started_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (j *BatchJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

func (j *BatchJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
