package domain

import (
	"github.com/fluentora/fluentora-backend/internal/domain/audience"
	"github.com/fluentora/fluentora-backend/internal/domain/automation"
	"github.com/fluentora/fluentora-backend/internal/domain/flags"
	"github.com/fluentora/fluentora-backend/internal/domain/user"
)

type User = user.User

type FeatureFlag = flags.FeatureFlag
type FlagHistoryEntry = flags.FlagHistoryEntry

type Tag = audience.Tag
type TagAssignment = audience.TagAssignment
type Segment = audience.Segment
type FilterRule = audience.FilterRule

type Sequence = automation.Sequence
type Step = automation.Step
type EmailStep = automation.EmailStep
type DelayStep = automation.DelayStep
type ConditionStep = automation.ConditionStep
type Enrollment = automation.Enrollment
type SequenceLog = automation.SequenceLog

const (
	RoleLearner = user.RoleLearner
	RoleCoach   = user.RoleCoach
	RoleAdmin   = user.RoleAdmin

	EnvironmentAll         = flags.EnvironmentAll
	EnvironmentDevelopment = flags.EnvironmentDevelopment
	EnvironmentStaging     = flags.EnvironmentStaging
	EnvironmentProduction  = flags.EnvironmentProduction

	FlagActionCreated  = flags.FlagActionCreated
	FlagActionEnabled  = flags.FlagActionEnabled
	FlagActionDisabled = flags.FlagActionDisabled
	FlagActionUpdated  = flags.FlagActionUpdated
	FlagActionDeleted  = flags.FlagActionDeleted

	LogicAnd = audience.LogicAnd
	LogicOr  = audience.LogicOr

	TagSourceManual    = audience.TagSourceManual
	TagSourceAutomatic = audience.TagSourceAutomatic

	TriggerUserSignup            = automation.TriggerUserSignup
	TriggerCoursePurchase        = automation.TriggerCoursePurchase
	TriggerCourseCompleted       = automation.TriggerCourseCompleted
	TriggerSessionBooked         = automation.TriggerSessionBooked
	TriggerSubscriptionStarted   = automation.TriggerSubscriptionStarted
	TriggerSubscriptionCancelled = automation.TriggerSubscriptionCancelled
	TriggerInactivity            = automation.TriggerInactivity
	TriggerManual                = automation.TriggerManual

	SequenceStatusDraft    = automation.SequenceStatusDraft
	SequenceStatusActive   = automation.SequenceStatusActive
	SequenceStatusPaused   = automation.SequenceStatusPaused
	SequenceStatusArchived = automation.SequenceStatusArchived

	EnrollmentStatusActive     = automation.EnrollmentStatusActive
	EnrollmentStatusProcessing = automation.EnrollmentStatusProcessing
	EnrollmentStatusCompleted  = automation.EnrollmentStatusCompleted
	EnrollmentStatusCancelled  = automation.EnrollmentStatusCancelled

	LogStatusSent    = automation.LogStatusSent
	LogStatusOpened  = automation.LogStatusOpened
	LogStatusClicked = automation.LogStatusClicked
	LogStatusBounced = automation.LogStatusBounced
)

func ValidTrigger(trigger string) bool { return automation.ValidTrigger(trigger) }
