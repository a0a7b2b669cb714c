package automation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EnrollmentStatusActive     = "active"
	EnrollmentStatusProcessing = "processing"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusCancelled  = "cancelled"
)

// Enrollment tracks one user's progress through one sequence. A partial
// unique index on (sequence_id, user_id) over live statuses guarantees at
// most one live enrollment per pair; see db.PostgresService.AutoMigrateAll.
// The processing status is a claim held by a single queue worker pass.
type Enrollment struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SequenceID  uuid.UUID      `gorm:"type:uuid;not null;index;column:sequence_id" json:"sequence_id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	CurrentStep int            `gorm:"not null;default:0;column:current_step" json:"current_step"`
	Status      string         `gorm:"not null;default:'active';index;column:status" json:"status"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	EnrolledAt  time.Time  `gorm:"not null;default:now();column:enrolled_at" json:"enrolled_at"`
	LastStepAt  *time.Time `gorm:"column:last_step_at" json:"last_step_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Enrollment) TableName() string { return "sequence_enrollment" }
