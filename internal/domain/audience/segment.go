package audience

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Segment is a saved filter-rule list. MemberCount is a snapshot taken at
// save/refresh time, not a live value; RefreshedAt tells admins how stale it is.
type Segment struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string         `gorm:"not null;column:name" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Filters     datatypes.JSON `gorm:"not null;column:filters" json:"filters"`
	Logic       string         `gorm:"not null;default:'AND';column:logic" json:"logic"`
	MemberCount int64          `gorm:"not null;default:0;column:member_count" json:"member_count"`
	RefreshedAt *time.Time     `gorm:"column:refreshed_at" json:"refreshed_at,omitempty"`
	CreatedBy   uuid.UUID      `gorm:"type:uuid;column:created_by" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Segment) TableName() string { return "segment" }

// FilterRule is one entry of a segment's filter list. Value is operator
// dependent: scalar for comparisons, 2-element array for between, array for in,
// tag name for has_tag / not_has_tag.
type FilterRule struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}
