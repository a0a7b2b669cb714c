package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/fluentora/fluentora-backend/internal/domain"
)

func baseFlag(key string, rollout int) *types.FeatureFlag {
	return &types.FeatureFlag{
		ID:                uuid.New(),
		Key:               key,
		Name:              key,
		Enabled:           true,
		Environment:       types.EnvironmentAll,
		RolloutPercentage: rollout,
	}
}

func TestRolloutBucketDeterministic(t *testing.T) {
	userID := uuid.New()
	first := RolloutBucket(userID, "new_checkout")
	for i := 0; i < 100; i++ {
		if got := RolloutBucket(userID, "new_checkout"); got != first {
			t.Fatalf("bucket changed between evaluations: %d != %d", got, first)
		}
	}
	if first < 0 || first >= 100 {
		t.Fatalf("bucket out of range: %d", first)
	}
}

func TestRolloutBucketVariesByKey(t *testing.T) {
	userID := uuid.New()
	varied := false
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	first := RolloutBucket(userID, keys[0])
	for _, key := range keys[1:] {
		if RolloutBucket(userID, key) != first {
			varied = true
			break
		}
	}
	if !varied {
		t.Fatal("bucket identical across eight keys, hash is not mixing the key in")
	}
}

func TestEvaluateFlagDisabledAndMissing(t *testing.T) {
	ec := EvalContext{UserID: uuid.New(), Role: types.RoleLearner}
	if EvaluateFlag(nil, types.EnvironmentProduction, ec) {
		t.Fatal("missing flag must evaluate false")
	}
	flag := baseFlag("k", 100)
	flag.Enabled = false
	if EvaluateFlag(flag, types.EnvironmentProduction, ec) {
		t.Fatal("disabled flag must evaluate false")
	}
}

func TestEvaluateFlagEnvironmentMismatch(t *testing.T) {
	ec := EvalContext{UserID: uuid.New(), Role: types.RoleLearner}
	flag := baseFlag("k", 100)
	flag.Environment = types.EnvironmentStaging
	if EvaluateFlag(flag, types.EnvironmentProduction, ec) {
		t.Fatal("staging flag must not fire in production")
	}
	if !EvaluateFlag(flag, types.EnvironmentStaging, ec) {
		t.Fatal("staging flag must fire in staging")
	}
}

func TestEvaluateFlagRolloutBoundaries(t *testing.T) {
	ec := EvalContext{UserID: uuid.New(), Role: types.RoleLearner}
	if EvaluateFlag(baseFlag("k", 0), types.EnvironmentProduction, ec) {
		t.Fatal("0% rollout must exclude everyone")
	}
	if !EvaluateFlag(baseFlag("k", 100), types.EnvironmentProduction, ec) {
		t.Fatal("100% rollout must include everyone")
	}
}

func TestEvaluateFlagAllowlistBypassesRollout(t *testing.T) {
	userID := uuid.New()
	ec := EvalContext{UserID: userID, Role: types.RoleLearner}
	flag := baseFlag("k", 0)
	flag.TargetUserIDs = datatypes.JSON([]byte(`["` + userID.String() + `"]`))
	if !EvaluateFlag(flag, types.EnvironmentProduction, ec) {
		t.Fatal("allow-listed user must bypass a 0% rollout")
	}
}

func TestEvaluateFlagAllowlistBypassesRoles(t *testing.T) {
	userID := uuid.New()
	ec := EvalContext{UserID: userID, Role: types.RoleLearner}
	flag := baseFlag("k", 100)
	flag.TargetRoles = datatypes.JSON([]byte(`["admin"]`))
	flag.TargetUserIDs = datatypes.JSON([]byte(`["` + userID.String() + `"]`))
	if !EvaluateFlag(flag, types.EnvironmentProduction, ec) {
		t.Fatal("allow-listed user must bypass the role restriction")
	}
}

func TestEvaluateFlagRoleRestriction(t *testing.T) {
	flag := baseFlag("k", 100)
	flag.TargetRoles = datatypes.JSON([]byte(`["coach"]`))
	if EvaluateFlag(flag, types.EnvironmentProduction, EvalContext{UserID: uuid.New(), Role: types.RoleLearner}) {
		t.Fatal("learner must not pass a coach-only flag")
	}
	if !EvaluateFlag(flag, types.EnvironmentProduction, EvalContext{UserID: uuid.New(), Role: types.RoleCoach}) {
		t.Fatal("coach must pass a coach-only flag")
	}
}

func TestEvaluateFlagMalformedRolesFailsClosed(t *testing.T) {
	flag := baseFlag("k", 100)
	flag.TargetRoles = datatypes.JSON([]byte(`{"oops":`))
	if EvaluateFlag(flag, types.EnvironmentProduction, EvalContext{UserID: uuid.New(), Role: types.RoleAdmin}) {
		t.Fatal("malformed role targeting must evaluate false")
	}
}

func TestEvaluateFlagMalformedUserIDsSkipsAllowlist(t *testing.T) {
	flag := baseFlag("k", 100)
	flag.TargetUserIDs = datatypes.JSON([]byte(`not json`))
	// Rest of the evaluation still applies: full rollout, no role limits.
	if !EvaluateFlag(flag, types.EnvironmentProduction, EvalContext{UserID: uuid.New(), Role: types.RoleLearner}) {
		t.Fatal("malformed allow-list must not disable the flag outright")
	}
}

func TestEvaluateFlagPartialRolloutMatchesBucket(t *testing.T) {
	flag := baseFlag("k", 50)
	for i := 0; i < 50; i++ {
		userID := uuid.New()
		want := RolloutBucket(userID, "k") < 50
		got := EvaluateFlag(flag, types.EnvironmentProduction, EvalContext{UserID: userID, Role: types.RoleLearner})
		if got != want {
			t.Fatalf("user %s: evaluation %v disagrees with bucket rule %v", userID, got, want)
		}
	}
}

func TestLocalFlagCacheExpiry(t *testing.T) {
	cache := NewLocalFlagCache(time.Minute).(*localFlagCache)
	current := time.Now()
	cache.now = func() time.Time { return current }

	ctx := context.Background()
	flag := baseFlag("cached", 100)
	cache.Set(ctx, "cached", flag)

	if got, ok := cache.Get(ctx, "cached"); !ok || got.Key != "cached" {
		t.Fatal("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get(ctx, "cached"); ok {
		t.Fatal("expected cache miss after TTL")
	}

	cache.Set(ctx, "cached", flag)
	cache.Invalidate(ctx, "cached")
	if _, ok := cache.Get(ctx, "cached"); ok {
		t.Fatal("expected cache miss after invalidation")
	}
}
