package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunModeDelta = "delta"
	RunModeFull  = "full"

	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
	RunStatusPartial   = "partial"
)

// IngestionRun tracks one fetch->normalize->dedupe->store execution for a
// single agency feed. Counts only ever go up; status moves
// queued -> running -> {success|partial|failed|cancelled}.
type IngestionRun struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Agency string    `gorm:"column:agency;not null;index" json:"agency"`
	Mode   string    `gorm:"column:mode;not null;default:'delta'" json:"mode"`
	Status string    `gorm:"column:status;not null;index" json:"status"`

	StartedAt  *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`

	ItemsInserted int `gorm:"column:items_inserted;not null;default:0" json:"items_inserted"`
	ItemsUpdated  int `gorm:"column:items_updated;not null;default:0" json:"items_updated"`
	ItemsSkipped  int `gorm:"column:items_skipped;not null;default:0" json:"items_skipped"`
	ItemsFailed   int `gorm:"column:items_failed;not null;default:0" json:"items_failed"`

	ErrorText string `gorm:"column:error_text;type:text" json:"error_text,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (IngestionRun) TableName() string { return "ingestion_run" }

// Active reports whether the run still holds the per-agency slot.
func (r *IngestionRun) Active() bool {
	return r.Status == RunStatusQueued || r.Status == RunStatusRunning
}

// Terminal reports whether the run reached a final state.
func (r *IngestionRun) Terminal() bool {
	switch r.Status {
	case RunStatusSuccess, RunStatusFailed, RunStatusCancelled, RunStatusPartial:
		return true
	}
	return false
}
