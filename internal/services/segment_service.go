package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 10000
)

// segmentFields maps filter/sort field names to user table columns. Only
// fields in this map ever reach SQL text; everything else rides as a bound
// parameter.
var segmentFields = map[string]string{
	"email":          "email",
	"first_name":     "first_name",
	"last_name":      "last_name",
	"role":           "role",
	"locale":         "locale",
	"status":         "status",
	"created_at":     "created_at",
	"last_active_at": "last_active_at",
}

const (
	tagSubquery = "(SELECT tag_assignment.user_id FROM tag_assignment JOIN tag ON tag.id = tag_assignment.tag_id WHERE tag.name = ?)"
)

type SegmentQueryInput struct {
	Filters   []types.FilterRule `json:"filters"`
	Logic     string             `json:"logic"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`
	SortOrder string             `json:"sort_order"`
}

type SegmentQueryResult struct {
	Learners       []*types.User      `json:"learners"`
	TotalCount     int64              `json:"total_count"`
	AppliedFilters []types.FilterRule `json:"applied_filters"`
}

type SegmentService interface {
	Query(ctx context.Context, tx *gorm.DB, input SegmentQueryInput) (*SegmentQueryResult, error)
	SaveSegment(ctx context.Context, tx *gorm.DB, name, description string, filterRules []types.FilterRule, logic string, actorID uuid.UUID) (*types.Segment, error)
	RefreshSegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) (*types.Segment, error)
	ListSegments(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error)
	DeleteSegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) error
}

type segmentService struct {
	db          *gorm.DB
	log         *logger.Logger
	queryRepo   repos.LearnerQueryRepo
	segmentRepo repos.SegmentRepo
}

func NewSegmentService(db *gorm.DB, baseLog *logger.Logger, queryRepo repos.LearnerQueryRepo, segmentRepo repos.SegmentRepo) SegmentService {
	return &segmentService{
		db:          db,
		log:         baseLog.With("service", "SegmentService"),
		queryRepo:   queryRepo,
		segmentRepo: segmentRepo,
	}
}

// CompileRules translates filter rules into parameterized conditions.
// Malformed or unknown rules are dropped, not errored: the second return
// value lists the rules that actually made it into the query.
func CompileRules(filterRules []types.FilterRule) ([]repos.Condition, []types.FilterRule) {
	conditions := make([]repos.Condition, 0, len(filterRules))
	applied := make([]types.FilterRule, 0, len(filterRules))
	for _, rule := range filterRules {
		cond, ok := compileRule(rule)
		if !ok {
			continue
		}
		conditions = append(conditions, cond)
		applied = append(applied, rule)
	}
	return conditions, applied
}

func compileRule(rule types.FilterRule) (repos.Condition, bool) {
	switch rule.Operator {
	case "has_tag":
		name, ok := rule.Value.(string)
		if !ok || name == "" {
			return repos.Condition{}, false
		}
		return repos.Condition{Expr: "id IN " + tagSubquery, Args: []any{name}}, true
	case "not_has_tag":
		name, ok := rule.Value.(string)
		if !ok || name == "" {
			return repos.Condition{}, false
		}
		return repos.Condition{Expr: "id NOT IN " + tagSubquery, Args: []any{name}}, true
	}

	column, ok := segmentFields[rule.Field]
	if !ok {
		return repos.Condition{}, false
	}

	switch rule.Operator {
	case "equals":
		return repos.Condition{Expr: column + " = ?", Args: []any{rule.Value}}, true
	case "not_equals":
		return repos.Condition{Expr: column + " <> ?", Args: []any{rule.Value}}, true
	case "contains":
		return repos.Condition{Expr: column + " ILIKE ?", Args: []any{"%" + stringValue(rule.Value) + "%"}}, true
	case "starts_with":
		return repos.Condition{Expr: column + " ILIKE ?", Args: []any{stringValue(rule.Value) + "%"}}, true
	case "greater_than":
		return repos.Condition{Expr: column + " > ?", Args: []any{rule.Value}}, true
	case "less_than":
		return repos.Condition{Expr: column + " < ?", Args: []any{rule.Value}}, true
	case "is_empty":
		return repos.Condition{Expr: "(" + column + " IS NULL OR " + column + "::text = '')"}, true
	case "is_not_empty":
		return repos.Condition{Expr: "(" + column + " IS NOT NULL AND " + column + "::text <> '')"}, true
	case "between":
		bounds, ok := rule.Value.([]any)
		if !ok || len(bounds) != 2 {
			return repos.Condition{}, false
		}
		return repos.Condition{Expr: column + " BETWEEN ? AND ?", Args: []any{bounds[0], bounds[1]}}, true
	case "in":
		values, ok := rule.Value.([]any)
		if !ok || len(values) == 0 {
			return repos.Condition{}, false
		}
		return repos.Condition{Expr: column + " IN ?", Args: []any{values}}, true
	}
	return repos.Condition{}, false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func normalizeQueryInput(input *SegmentQueryInput) {
	if strings.EqualFold(input.Logic, types.LogicOr) {
		input.Logic = types.LogicOr
	} else {
		input.Logic = types.LogicAnd
	}
	if input.Limit <= 0 {
		input.Limit = DefaultQueryLimit
	}
	if input.Limit > MaxQueryLimit {
		input.Limit = MaxQueryLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	if _, ok := segmentFields[input.SortBy]; !ok {
		input.SortBy = "created_at"
	} else {
		input.SortBy = segmentFields[input.SortBy]
	}
	if strings.EqualFold(input.SortOrder, "ASC") {
		input.SortOrder = "ASC"
	} else {
		input.SortOrder = "DESC"
	}
}

func (ss *segmentService) Query(ctx context.Context, tx *gorm.DB, input SegmentQueryInput) (*SegmentQueryResult, error) {
	normalizeQueryInput(&input)
	conditions, applied := CompileRules(input.Filters)
	if len(applied) < len(input.Filters) {
		ss.log.Warn("Dropped malformed segment filters",
			"requested", len(input.Filters), "applied", len(applied))
	}

	learners, total, err := ss.queryRepo.Query(ctx, tx, repos.LearnerQuery{
		Conditions: conditions,
		Logic:      input.Logic,
		SortBy:     input.SortBy,
		SortOrder:  input.SortOrder,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		// Availability over precision: answer with an unfiltered page rather
		// than failing the request. The WARN is the operator's only signal
		// that response semantics changed.
		ss.log.Warn("Segment query failed, falling back to unfiltered listing",
			"error", err, "filters", len(input.Filters))
		learners, total, err = ss.queryRepo.ListFallback(ctx, tx, input.Limit, input.Offset)
		if err != nil {
			return nil, err
		}
		return &SegmentQueryResult{Learners: learners, TotalCount: total, AppliedFilters: []types.FilterRule{}}, nil
	}

	return &SegmentQueryResult{Learners: learners, TotalCount: total, AppliedFilters: applied}, nil
}

func (ss *segmentService) memberCount(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string) (int64, error) {
	input := SegmentQueryInput{Filters: filterRules, Logic: logic, Limit: 1}
	normalizeQueryInput(&input)
	conditions, _ := CompileRules(input.Filters)
	_, total, err := ss.queryRepo.Query(ctx, tx, repos.LearnerQuery{
		Conditions: conditions,
		Logic:      input.Logic,
		SortBy:     input.SortBy,
		SortOrder:  input.SortOrder,
		Limit:      input.Limit,
	})
	return total, err
}

func (ss *segmentService) SaveSegment(ctx context.Context, tx *gorm.DB, name, description string, filterRules []types.FilterRule, logic string, actorID uuid.UUID) (*types.Segment, error) {
	if name == "" {
		return nil, fmt.Errorf("segment name is required")
	}
	if logic != types.LogicOr {
		logic = types.LogicAnd
	}
	raw, err := json.Marshal(filterRules)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	count, err := ss.memberCount(ctx, tx, filterRules, logic)
	if err != nil {
		return nil, fmt.Errorf("compute member count: %w", err)
	}

	now := time.Now().UTC()
	segment := &types.Segment{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Filters:     datatypes.JSON(raw),
		Logic:       logic,
		MemberCount: count,
		RefreshedAt: &now,
		CreatedBy:   actorID,
	}
	return ss.segmentRepo.Create(ctx, tx, segment)
}

func (ss *segmentService) RefreshSegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) (*types.Segment, error) {
	found, err := ss.segmentRepo.GetByIDs(ctx, tx, []uuid.UUID{segmentID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repos.ErrSegmentNotFound
	}
	segment := found[0]

	var filterRules []types.FilterRule
	if err := json.Unmarshal(segment.Filters, &filterRules); err != nil {
		return nil, fmt.Errorf("decode segment filters: %w", err)
	}

	count, err := ss.memberCount(ctx, tx, filterRules, segment.Logic)
	if err != nil {
		return nil, fmt.Errorf("compute member count: %w", err)
	}

	now := time.Now().UTC()
	if err := ss.segmentRepo.UpdateMemberCount(ctx, tx, segmentID, count, now); err != nil {
		return nil, err
	}
	segment.MemberCount = count
	segment.RefreshedAt = &now
	return segment, nil
}

func (ss *segmentService) ListSegments(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error) {
	return ss.segmentRepo.List(ctx, tx)
}

func (ss *segmentService) DeleteSegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) error {
	return ss.segmentRepo.Delete(ctx, tx, segmentID)
}
