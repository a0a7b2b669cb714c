package automation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TriggerUserSignup            = "user_signup"
	TriggerCoursePurchase        = "course_purchase"
	TriggerCourseCompleted       = "course_completed"
	TriggerSessionBooked         = "session_booked"
	TriggerSubscriptionStarted   = "subscription_started"
	TriggerSubscriptionCancelled = "subscription_cancelled"
	TriggerInactivity            = "inactivity"
	TriggerManual                = "manual"
)

var Triggers = []string{
	TriggerUserSignup,
	TriggerCoursePurchase,
	TriggerCourseCompleted,
	TriggerSessionBooked,
	TriggerSubscriptionStarted,
	TriggerSubscriptionCancelled,
	TriggerInactivity,
	TriggerManual,
}

func ValidTrigger(trigger string) bool {
	for _, t := range Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

const (
	SequenceStatusDraft    = "draft"
	SequenceStatusActive   = "active"
	SequenceStatusPaused   = "paused"
	SequenceStatusArchived = "archived"
)

// Sequence is a trigger-driven automation workflow. Steps holds the ordered
// JSON step array (see step.go); step identity is positional, so Steps must
// not change while Status is active; UpdateSequence enforces that.
type Sequence struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string         `gorm:"not null;column:name" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Trigger     string         `gorm:"not null;index;column:trigger" json:"trigger"`
	Status      string         `gorm:"not null;default:'draft';index;column:status" json:"status"`
	Steps       datatypes.JSON `gorm:"not null;column:steps" json:"steps"`

	EnrollmentCount int64     `gorm:"not null;default:0;column:enrollment_count" json:"enrollment_count"`
	CompletionCount int64     `gorm:"not null;default:0;column:completion_count" json:"completion_count"`
	CreatedBy       uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Sequence) TableName() string { return "sequence" }
