package automation

import (
	"time"

	"github.com/google/uuid"
)

const (
	LogStatusSent    = "sent"
	LogStatusOpened  = "opened"
	LogStatusClicked = "clicked"
	LogStatusBounced = "bounced"
)

// SequenceLog records one executed email step. Status moves one way,
// sent -> opened -> clicked; bounced is terminal.
type SequenceLog struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EnrollmentID uuid.UUID `gorm:"type:uuid;not null;index;column:enrollment_id" json:"enrollment_id"`
	SequenceID   uuid.UUID `gorm:"type:uuid;not null;index;column:sequence_id" json:"sequence_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	StepIndex    int       `gorm:"not null;column:step_index" json:"step_index"`
	Subject      string    `gorm:"column:subject" json:"subject"`
	Status       string    `gorm:"not null;default:'sent';index;column:status" json:"status"`

	SentAt    time.Time  `gorm:"not null;default:now();column:sent_at" json:"sent_at"`
	OpenedAt  *time.Time `gorm:"column:opened_at" json:"opened_at,omitempty"`
	ClickedAt *time.Time `gorm:"column:clicked_at" json:"clicked_at,omitempty"`
	BouncedAt *time.Time `gorm:"column:bounced_at" json:"bounced_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SequenceLog) TableName() string { return "sequence_log" }
