package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	"github.com/fluentora/fluentora-backend/internal/data/repos/testutil"
	types "github.com/fluentora/fluentora-backend/internal/domain"
)

func TestCompileRulesDropsUnknownField(t *testing.T) {
	conditions, applied := CompileRules([]types.FilterRule{
		{Field: "email", Operator: "equals", Value: "a@b.c"},
		{Field: "password_hash", Operator: "equals", Value: "x"},
	})
	if len(conditions) != 1 || len(applied) != 1 {
		t.Fatalf("expected one compiled rule, got %d", len(conditions))
	}
	if applied[0].Field != "email" {
		t.Fatalf("wrong rule survived: %s", applied[0].Field)
	}
}

func TestCompileRulesDropsUnknownOperator(t *testing.T) {
	conditions, _ := CompileRules([]types.FilterRule{
		{Field: "email", Operator: "regex", Value: ".*"},
	})
	if len(conditions) != 0 {
		t.Fatalf("unknown operator must be dropped, got %d conditions", len(conditions))
	}
}

func TestCompileRulesMalformedBetweenAndIn(t *testing.T) {
	conditions, _ := CompileRules([]types.FilterRule{
		{Field: "created_at", Operator: "between", Value: []any{"2026-01-01"}},
		{Field: "role", Operator: "in", Value: []any{}},
		{Field: "role", Operator: "in", Value: "learner"},
	})
	if len(conditions) != 0 {
		t.Fatalf("malformed between/in must be dropped, got %d conditions", len(conditions))
	}
}

func TestCompileRulesTagOperators(t *testing.T) {
	conditions, _ := CompileRules([]types.FilterRule{
		{Field: "tags", Operator: "has_tag", Value: "vip"},
		{Field: "tags", Operator: "not_has_tag", Value: "churned"},
		{Field: "tags", Operator: "has_tag", Value: ""},
	})
	if len(conditions) != 2 {
		t.Fatalf("expected 2 tag conditions, got %d", len(conditions))
	}
	if len(conditions[0].Args) != 1 || conditions[0].Args[0] != "vip" {
		t.Fatalf("tag name must ride as a bound parameter: %+v", conditions[0])
	}
}

func TestNormalizeQueryInputClamps(t *testing.T) {
	input := SegmentQueryInput{Logic: "XOR", Limit: 500000, Offset: -3, SortBy: "password", SortOrder: "up"}
	normalizeQueryInput(&input)
	if input.Logic != types.LogicAnd {
		t.Fatalf("unknown logic must fall back to AND, got %s", input.Logic)
	}
	if input.Limit != MaxQueryLimit {
		t.Fatalf("limit must clamp to %d, got %d", MaxQueryLimit, input.Limit)
	}
	if input.Offset != 0 {
		t.Fatalf("negative offset must clamp to 0, got %d", input.Offset)
	}
	if input.SortBy != "created_at" || input.SortOrder != "DESC" {
		t.Fatalf("sort must fall back to created_at DESC, got %s %s", input.SortBy, input.SortOrder)
	}

	lower := SegmentQueryInput{Logic: "or", SortOrder: "asc"}
	normalizeQueryInput(&lower)
	if lower.Logic != types.LogicOr {
		t.Fatalf("lowercase logic must normalize to OR, got %s", lower.Logic)
	}
	if lower.SortOrder != "ASC" {
		t.Fatalf("lowercase sort order must normalize to ASC, got %s", lower.SortOrder)
	}
}

func newSegmentServiceForTest(t *testing.T) (SegmentService, *testutilHandles) {
	t.Helper()
	h := newTestutilHandles(t)
	service := NewSegmentService(h.tx, h.log,
		repos.NewLearnerQueryRepo(h.tx, h.log),
		repos.NewSegmentRepo(h.tx, h.log))
	return service, h
}

func TestSegmentQueryFiltersAndTags(t *testing.T) {
	service, h := newSegmentServiceForTest(t)
	ctx := context.Background()

	vip := testutil.SeedUser(t, ctx, h.tx, "vip@fluentora.test", types.RoleLearner)
	plain := testutil.SeedUser(t, ctx, h.tx, "plain@fluentora.test", types.RoleLearner)
	coach := testutil.SeedUser(t, ctx, h.tx, "coach@fluentora.test", types.RoleCoach)

	tag := testutil.SeedTag(t, ctx, h.tx, "vip")
	testutil.SeedTagAssignment(t, ctx, h.tx, tag.ID, vip.ID)

	result, err := service.Query(ctx, h.tx, SegmentQueryInput{
		Filters: []types.FilterRule{
			{Field: "role", Operator: "equals", Value: types.RoleLearner},
			{Field: "tags", Operator: "has_tag", Value: "vip"},
		},
		Logic: types.LogicAnd,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.TotalCount != 1 || len(result.Learners) != 1 {
		t.Fatalf("expected exactly the tagged learner, got %d", result.TotalCount)
	}
	if result.Learners[0].ID != vip.ID {
		t.Fatalf("wrong learner matched: %s", result.Learners[0].Email)
	}
	if len(result.AppliedFilters) != 2 {
		t.Fatalf("both filters should apply, got %d", len(result.AppliedFilters))
	}

	result, err = service.Query(ctx, h.tx, SegmentQueryInput{
		Filters: []types.FilterRule{
			{Field: "email", Operator: "starts_with", Value: "plain"},
			{Field: "role", Operator: "equals", Value: types.RoleCoach},
		},
		Logic: types.LogicOr,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.TotalCount != 2 {
		t.Fatalf("OR over plain/coach should match 2, got %d", result.TotalCount)
	}
	found := map[uuid.UUID]bool{}
	for _, learner := range result.Learners {
		found[learner.ID] = true
	}
	if !found[plain.ID] || !found[coach.ID] {
		t.Fatal("OR query missed an expected learner")
	}
}

func TestSegmentQueryNotHasTag(t *testing.T) {
	service, h := newSegmentServiceForTest(t)
	ctx := context.Background()

	tagged := testutil.SeedUser(t, ctx, h.tx, "tagged@fluentora.test", types.RoleLearner)
	untagged := testutil.SeedUser(t, ctx, h.tx, "untagged@fluentora.test", types.RoleLearner)
	tag := testutil.SeedTag(t, ctx, h.tx, "beta")
	testutil.SeedTagAssignment(t, ctx, h.tx, tag.ID, tagged.ID)

	result, err := service.Query(ctx, h.tx, SegmentQueryInput{
		Filters: []types.FilterRule{
			{Field: "tags", Operator: "not_has_tag", Value: "beta"},
		},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, learner := range result.Learners {
		if learner.ID == tagged.ID {
			t.Fatal("not_has_tag returned a tagged learner")
		}
	}
	found := false
	for _, learner := range result.Learners {
		if learner.ID == untagged.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("not_has_tag dropped an untagged learner")
	}
}

func TestSaveAndRefreshSegment(t *testing.T) {
	service, h := newSegmentServiceForTest(t)
	ctx := context.Background()

	admin := testutil.SeedUser(t, ctx, h.tx, "admin@fluentora.test", types.RoleAdmin)
	testutil.SeedUser(t, ctx, h.tx, "l1@fluentora.test", types.RoleLearner)
	testutil.SeedUser(t, ctx, h.tx, "l2@fluentora.test", types.RoleLearner)

	segment, err := service.SaveSegment(ctx, h.tx, "learners", "", []types.FilterRule{
		{Field: "role", Operator: "equals", Value: types.RoleLearner},
	}, types.LogicAnd, admin.ID)
	if err != nil {
		t.Fatalf("save segment: %v", err)
	}
	if segment.MemberCount != 2 {
		t.Fatalf("member count snapshot should be 2, got %d", segment.MemberCount)
	}
	if segment.RefreshedAt == nil {
		t.Fatal("RefreshedAt must be stamped at save")
	}

	testutil.SeedUser(t, ctx, h.tx, "l3@fluentora.test", types.RoleLearner)
	refreshed, err := service.RefreshSegment(ctx, h.tx, segment.ID)
	if err != nil {
		t.Fatalf("refresh segment: %v", err)
	}
	if refreshed.MemberCount != 3 {
		t.Fatalf("refreshed member count should be 3, got %d", refreshed.MemberCount)
	}
}
