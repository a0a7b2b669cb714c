package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

// AutomationFlagKey gates the whole automation subsystem; EnrollByTrigger is
// a no-op for users it evaluates false for.
const AutomationFlagKey = "automation_sequences"

// EvalContext identifies who a flag is being evaluated for.
type EvalContext struct {
	UserID uuid.UUID
	Role   string
}

type CreateFlagInput struct {
	Key               string   `json:"key"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Enabled           bool     `json:"enabled"`
	Environment       string   `json:"environment"`
	RolloutPercentage int      `json:"rollout_percentage"`
	TargetUserIDs     []string `json:"target_user_ids"`
	TargetRoles       []string `json:"target_roles"`
}

type UpdateFlagInput struct {
	Name              *string   `json:"name,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Enabled           *bool     `json:"enabled,omitempty"`
	Environment       *string   `json:"environment,omitempty"`
	RolloutPercentage *int      `json:"rollout_percentage,omitempty"`
	TargetUserIDs     *[]string `json:"target_user_ids,omitempty"`
	TargetRoles       *[]string `json:"target_roles,omitempty"`
}

type FlagService interface {
	IsEnabled(ctx context.Context, key string, ec EvalContext) bool
	GetUserFlags(ctx context.Context, ec EvalContext) map[string]bool
	List(ctx context.Context, tx *gorm.DB) ([]*types.FeatureFlag, error)
	Get(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) (*types.FeatureFlag, error)
	Create(ctx context.Context, tx *gorm.DB, input CreateFlagInput, actorID uuid.UUID) (*types.FeatureFlag, error)
	Update(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, input UpdateFlagInput, actorID uuid.UUID) (*types.FeatureFlag, error)
	Toggle(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, actorID uuid.UUID) (*types.FeatureFlag, error)
	Delete(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, actorID uuid.UUID) error
	History(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) ([]*types.FlagHistoryEntry, error)
}

type flagService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.FlagRepo
	historyRepo repos.FlagHistoryRepo
	cache       FlagCache
	environment string
}

func NewFlagService(db *gorm.DB, baseLog *logger.Logger, repo repos.FlagRepo, historyRepo repos.FlagHistoryRepo, cache FlagCache, environment string) FlagService {
	return &flagService{
		db:          db,
		log:         baseLog.With("service", "FlagService"),
		repo:        repo,
		historyRepo: historyRepo,
		cache:       cache,
		environment: environment,
	}
}

// RolloutBucket maps (userID, flagKey) into [0,100). xxhash is stable across
// process restarts and instances, so a user's decision never flickers as the
// cache refreshes or requests land on different servers.
func RolloutBucket(userID uuid.UUID, flagKey string) int {
	return int(xxhash.Sum64String(userID.String()+":"+flagKey) % 100)
}

// EvaluateFlag computes the enable decision for one flag. It never errors;
// any ambiguity resolves to false.
func EvaluateFlag(flag *types.FeatureFlag, environment string, ec EvalContext) bool {
	if flag == nil || !flag.Enabled {
		return false
	}
	if flag.Environment != types.EnvironmentAll && flag.Environment != environment {
		return false
	}

	// Explicit allow-list wins over role and rollout restrictions.
	targetUsers, usersOK := decodeStringList(flag.TargetUserIDs)
	if usersOK && containsString(targetUsers, ec.UserID.String()) {
		return true
	}

	targetRoles, rolesOK := decodeStringList(flag.TargetRoles)
	if !rolesOK {
		// Unparseable role targeting: fail closed.
		return false
	}
	if len(targetRoles) > 0 && !containsString(targetRoles, ec.Role) {
		return false
	}

	if flag.RolloutPercentage < 100 {
		return RolloutBucket(ec.UserID, flag.Key) < flag.RolloutPercentage
	}
	return true
}

// decodeStringList decodes a JSON string-array column. An absent column is a
// valid empty list; malformed JSON reports ok=false so callers can pick the
// fail-closed branch for their context.
func decodeStringList(raw datatypes.JSON) ([]string, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	return values, true
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func (fs *flagService) IsEnabled(ctx context.Context, key string, ec EvalContext) bool {
	flag := fs.lookup(ctx, key)
	return EvaluateFlag(flag, fs.environment, ec)
}

func (fs *flagService) lookup(ctx context.Context, key string) *types.FeatureFlag {
	if flag, ok := fs.cache.Get(ctx, key); ok {
		return flag
	}
	found, err := fs.repo.GetByKeys(ctx, nil, []string{key})
	if err != nil {
		fs.log.Warn("Flag lookup failed, failing closed", "key", key, "error", err)
		return nil
	}
	if len(found) == 0 {
		return nil
	}
	fs.cache.Set(ctx, key, found[0])
	return found[0]
}

func (fs *flagService) GetUserFlags(ctx context.Context, ec EvalContext) map[string]bool {
	result := map[string]bool{}
	allFlags, err := fs.repo.List(ctx, nil)
	if err != nil {
		fs.log.Warn("Listing flags for bulk evaluation failed, returning empty set", "error", err)
		return result
	}
	for _, flag := range allFlags {
		result[flag.Key] = EvaluateFlag(flag, fs.environment, ec)
	}
	return result
}

func (fs *flagService) List(ctx context.Context, tx *gorm.DB) ([]*types.FeatureFlag, error) {
	return fs.repo.List(ctx, tx)
}

func (fs *flagService) Get(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) (*types.FeatureFlag, error) {
	found, err := fs.repo.GetByIDs(ctx, tx, []uuid.UUID{flagID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repos.ErrFlagNotFound
	}
	return found[0], nil
}

func validEnvironment(environment string) bool {
	switch environment {
	case types.EnvironmentAll, types.EnvironmentDevelopment, types.EnvironmentStaging, types.EnvironmentProduction:
		return true
	}
	return false
}

func encodeStringList(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (fs *flagService) Create(ctx context.Context, tx *gorm.DB, input CreateFlagInput, actorID uuid.UUID) (*types.FeatureFlag, error) {
	if input.Key == "" {
		return nil, fmt.Errorf("flag key is required")
	}
	if input.Environment == "" {
		input.Environment = types.EnvironmentAll
	}
	if !validEnvironment(input.Environment) {
		return nil, fmt.Errorf("invalid environment %q", input.Environment)
	}
	if input.RolloutPercentage < 0 || input.RolloutPercentage > 100 {
		return nil, fmt.Errorf("rollout percentage must be within [0,100]")
	}

	targetUsers, err := encodeStringList(input.TargetUserIDs)
	if err != nil {
		return nil, err
	}
	targetRoles, err := encodeStringList(input.TargetRoles)
	if err != nil {
		return nil, err
	}

	flag := &types.FeatureFlag{
		ID:                uuid.New(),
		Key:               input.Key,
		Name:              input.Name,
		Description:       input.Description,
		Enabled:           input.Enabled,
		Environment:       input.Environment,
		RolloutPercentage: input.RolloutPercentage,
		TargetUserIDs:     targetUsers,
		TargetRoles:       targetRoles,
		CreatedBy:         actorID,
	}
	created, err := fs.repo.Create(ctx, tx, flag)
	if err != nil {
		return nil, err
	}

	fs.appendHistory(ctx, created.ID, types.FlagActionCreated, nil, created, actorID)
	fs.cache.Invalidate(ctx, created.Key)
	return created, nil
}

func (fs *flagService) Update(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, input UpdateFlagInput, actorID uuid.UUID) (*types.FeatureFlag, error) {
	before, err := fs.Get(ctx, tx, flagID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Enabled != nil {
		updates["enabled"] = *input.Enabled
	}
	if input.Environment != nil {
		if !validEnvironment(*input.Environment) {
			return nil, fmt.Errorf("invalid environment %q", *input.Environment)
		}
		updates["environment"] = *input.Environment
	}
	if input.RolloutPercentage != nil {
		if *input.RolloutPercentage < 0 || *input.RolloutPercentage > 100 {
			return nil, fmt.Errorf("rollout percentage must be within [0,100]")
		}
		updates["rollout_percentage"] = *input.RolloutPercentage
	}
	if input.TargetUserIDs != nil {
		encoded, err := encodeStringList(*input.TargetUserIDs)
		if err != nil {
			return nil, err
		}
		updates["target_user_ids"] = encoded
	}
	if input.TargetRoles != nil {
		encoded, err := encodeStringList(*input.TargetRoles)
		if err != nil {
			return nil, err
		}
		updates["target_roles"] = encoded
	}
	if len(updates) == 0 {
		return before, nil
	}

	if err := fs.repo.Update(ctx, tx, flagID, updates); err != nil {
		return nil, err
	}
	after, err := fs.Get(ctx, tx, flagID)
	if err != nil {
		return nil, err
	}

	fs.appendHistory(ctx, flagID, types.FlagActionUpdated, before, after, actorID)
	fs.cache.Invalidate(ctx, before.Key)
	return after, nil
}

func (fs *flagService) Toggle(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, actorID uuid.UUID) (*types.FeatureFlag, error) {
	before, err := fs.Get(ctx, tx, flagID)
	if err != nil {
		return nil, err
	}
	if err := fs.repo.Update(ctx, tx, flagID, map[string]any{"enabled": !before.Enabled}); err != nil {
		return nil, err
	}
	after, err := fs.Get(ctx, tx, flagID)
	if err != nil {
		return nil, err
	}

	action := types.FlagActionEnabled
	if !after.Enabled {
		action = types.FlagActionDisabled
	}
	fs.appendHistory(ctx, flagID, action, before, after, actorID)
	fs.cache.Invalidate(ctx, before.Key)
	return after, nil
}

func (fs *flagService) Delete(ctx context.Context, tx *gorm.DB, flagID uuid.UUID, actorID uuid.UUID) error {
	before, err := fs.Get(ctx, tx, flagID)
	if err != nil {
		return err
	}
	if err := fs.repo.Delete(ctx, tx, flagID); err != nil {
		return err
	}
	fs.appendHistory(ctx, flagID, types.FlagActionDeleted, before, nil, actorID)
	fs.cache.Invalidate(ctx, before.Key)
	return nil
}

func (fs *flagService) History(ctx context.Context, tx *gorm.DB, flagID uuid.UUID) ([]*types.FlagHistoryEntry, error) {
	return fs.historyRepo.ListByFlag(ctx, tx, flagID)
}

// appendHistory is best-effort: flag mutation must never fail because the
// audit write failed.
func (fs *flagService) appendHistory(ctx context.Context, flagID uuid.UUID, action string, before, after *types.FeatureFlag, actorID uuid.UUID) {
	entry := &types.FlagHistoryEntry{
		ID:      uuid.New(),
		FlagID:  flagID,
		Action:  action,
		ActorID: actorID,
	}
	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			entry.Before = datatypes.JSON(raw)
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			entry.After = datatypes.JSON(raw)
		}
	}
	entry.CreatedAt = time.Now().UTC()
	if _, err := fs.historyRepo.Create(ctx, nil, []*types.FlagHistoryEntry{entry}); err != nil {
		fs.log.Warn("Flag history write failed", "flag_id", flagID, "action", action, "error", err)
	}
}
