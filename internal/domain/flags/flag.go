package flags

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EnvironmentAll         = "all"
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// FeatureFlag is a persisted flag definition. TargetUserIDs and TargetRoles
// are JSON string arrays; malformed payloads are resolved fail-closed by the
// evaluator, never here.
type FeatureFlag struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Key               string         `gorm:"uniqueIndex;not null;column:key" json:"key"`
	Name              string         `gorm:"not null;column:name" json:"name"`
	Description       string         `gorm:"column:description" json:"description"`
	Enabled           bool           `gorm:"not null;default:false;column:enabled" json:"enabled"`
	Environment       string         `gorm:"not null;default:'all';column:environment" json:"environment"`
	RolloutPercentage int            `gorm:"not null;default:100;column:rollout_percentage" json:"rollout_percentage"`
	TargetUserIDs     datatypes.JSON `gorm:"column:target_user_ids" json:"target_user_ids,omitempty"`
	TargetRoles       datatypes.JSON `gorm:"column:target_roles" json:"target_roles,omitempty"`
	CreatedBy         uuid.UUID      `gorm:"type:uuid;column:created_by" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FeatureFlag) TableName() string { return "feature_flag" }

const (
	FlagActionCreated  = "created"
	FlagActionEnabled  = "enabled"
	FlagActionDisabled = "disabled"
	FlagActionUpdated  = "updated"
	FlagActionDeleted  = "deleted"
)

// FlagHistoryEntry is an append-only audit record of one flag mutation.
type FlagHistoryEntry struct {
	ID      uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlagID  uuid.UUID      `gorm:"type:uuid;not null;index;column:flag_id" json:"flag_id"`
	Action  string         `gorm:"not null;column:action" json:"action"`
	Before  datatypes.JSON `gorm:"column:before" json:"before,omitempty"`
	After   datatypes.JSON `gorm:"column:after" json:"after,omitempty"`
	ActorID uuid.UUID      `gorm:"type:uuid;column:actor_id" json:"actor_id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (FlagHistoryEntry) TableName() string { return "flag_history" }
