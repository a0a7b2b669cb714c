package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	types "github.com/fluentora/fluentora-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		Role:      role,
		Locale:    "en",
		Status:    "active",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedFlag(tb testing.TB, ctx context.Context, tx *gorm.DB, key string, enabled bool, rollout int) *types.FeatureFlag {
	tb.Helper()
	f := &types.FeatureFlag{
		ID:                uuid.New(),
		Key:               key,
		Name:              key,
		Enabled:           enabled,
		Environment:       types.EnvironmentAll,
		RolloutPercentage: rollout,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed flag: %v", err)
	}
	return f
}

func SeedTag(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Tag {
	tb.Helper()
	t := &types.Tag{
		ID:       uuid.New(),
		Name:     name,
		Category: "test",
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tag: %v", err)
	}
	return t
}

func SeedTagAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, tagID, userID uuid.UUID) *types.TagAssignment {
	tb.Helper()
	a := &types.TagAssignment{
		ID:     uuid.New(),
		TagID:  tagID,
		UserID: userID,
		Source: types.TagSourceManual,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed tag assignment: %v", err)
	}
	return a
}

func SeedSequence(tb testing.TB, ctx context.Context, tx *gorm.DB, trigger, status string, steps datatypes.JSON) *types.Sequence {
	tb.Helper()
	if steps == nil {
		steps = datatypes.JSON([]byte("[]"))
	}
	s := &types.Sequence{
		ID:      uuid.New(),
		Name:    "sequence",
		Trigger: trigger,
		Status:  status,
		Steps:   steps,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed sequence: %v", err)
	}
	return s
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, sequenceID, userID uuid.UUID, currentStep int) *types.Enrollment {
	tb.Helper()
	e := &types.Enrollment{
		ID:          uuid.New(),
		SequenceID:  sequenceID,
		UserID:      userID,
		CurrentStep: currentStep,
		Status:      types.EnrollmentStatusActive,
		Metadata:    datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedSequenceLog(tb testing.TB, ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, stepIndex int, status string) *types.SequenceLog {
	tb.Helper()
	l := &types.SequenceLog{
		ID:           uuid.New(),
		EnrollmentID: enrollment.ID,
		SequenceID:   enrollment.SequenceID,
		UserID:       enrollment.UserID,
		StepIndex:    stepIndex,
		Subject:      "subject",
		Status:       status,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed sequence log: %v", err)
	}
	return l
}
