package jobs

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one queued inbound turn awaiting a worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID string `gorm:"type:varchar(64);not null;index:uniq_job_user_idempo,unique,priority:1" json:"user_id"`
	Text   string `gorm:"type:text;not null" json:"text"`

	// ChatID is set for turns arriving via the Telegram gateway so the
	// worker can deliver the reply.
	ChatID int64 `gorm:"default:0" json:"chat_id,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_user_idempo,unique,priority:2" json:"idempotency_key,omitempty"`

	Status Status `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Reply *string `gorm:"type:text" json:"reply,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "turn_jobs" }

func NewJobID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
