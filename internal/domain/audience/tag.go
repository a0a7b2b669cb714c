package audience

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tag struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name     string    `gorm:"uniqueIndex;not null;column:name" json:"name"`
	Category string    `gorm:"column:category" json:"category"`
	Color    string    `gorm:"column:color" json:"color"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Tag) TableName() string { return "tag" }

const (
	TagSourceManual    = "manual"
	TagSourceAutomatic = "automatic"
)

// TagAssignment links a tag to a learner with provenance.
type TagAssignment struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TagID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_tag_assignment;column:tag_id" json:"tag_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_tag_assignment;index;column:user_id" json:"user_id"`
	Source     string    `gorm:"not null;default:'manual';column:source" json:"source"`
	AssignedBy uuid.UUID `gorm:"type:uuid;column:assigned_by" json:"assigned_by"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (TagAssignment) TableName() string { return "tag_assignment" }
