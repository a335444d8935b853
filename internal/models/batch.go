package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchRun is the run-log row for one batch. It holds counts only.
type BatchRun struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Mode      string    `gorm:"type:text" json:"mode"`
	Total     int       `gorm:"not null" json:"total"`
	Succeeded int       `gorm:"not null" json:"succeeded"`
	Failed    int       `gorm:"not null" json:"failed"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	Documents []BatchDocument `gorm:"foreignKey:BatchRunID" json:"documents,omitempty"`
}

func (BatchRun) TableName() string {
	return "batch_runs"
}

type BatchDocument struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BatchRunID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"batch_run_id"`
	Position     int            `gorm:"not null" json:"position"`
	Filename     string         `gorm:"type:text" json:"filename"`
	Status       DocumentStatus `gorm:"type:text;not null" json:"status"`
	FailedStage  DocumentStatus `gorm:"type:text" json:"failed_stage,omitempty"`
	ErrorKind    string         `gorm:"type:text" json:"error_kind,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Warning      string         `gorm:"type:text" json:"warning,omitempty"`
	CreatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (BatchDocument) TableName() string {
	return "batch_documents"
}
