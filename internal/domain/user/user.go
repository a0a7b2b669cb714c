package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleLearner = "learner"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

// User is the subsystem's projection of a marketplace account: the base
// record segment filters run against and automation conditions read from.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	FirstName string    `gorm:"not null;column:first_name" json:"first_name"`
	LastName  string    `gorm:"not null;column:last_name" json:"last_name"`
	Role      string    `gorm:"not null;default:'learner';column:role" json:"role"`
	Locale    string    `gorm:"not null;default:'en';column:locale" json:"locale"`
	Status    string    `gorm:"not null;default:'active';column:status" json:"status"`

	LastActiveAt *time.Time `gorm:"column:last_active_at" json:"last_active_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
