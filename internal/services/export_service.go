package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

// MaxExportRows bounds how much of a result set an export materializes in
// memory before encoding.
const MaxExportRows = 10000

var exportableFields = []string{
	"id", "email", "first_name", "last_name", "role", "locale", "status",
	"tags", "last_active_at", "created_at",
}

var defaultExportFields = []string{
	"email", "first_name", "last_name", "role", "locale", "status", "tags",
}

type ExportService interface {
	ExportCSV(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error)
	ExportExcel(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error)
	ExportJSON(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error)
}

type exportService struct {
	db             *gorm.DB
	log            *logger.Logger
	segmentService SegmentService
	assignmentRepo repos.TagAssignmentRepo
}

func NewExportService(db *gorm.DB, baseLog *logger.Logger, segmentService SegmentService, assignmentRepo repos.TagAssignmentRepo) ExportService {
	return &exportService{
		db:             db,
		log:            baseLog.With("service", "ExportService"),
		segmentService: segmentService,
		assignmentRepo: assignmentRepo,
	}
}

func sanitizeExportFields(fields []string) []string {
	if len(fields) == 0 {
		return defaultExportFields
	}
	valid := make([]string, 0, len(fields))
	for _, field := range fields {
		for _, known := range exportableFields {
			if field == known {
				valid = append(valid, field)
				break
			}
		}
	}
	if len(valid) == 0 {
		return defaultExportFields
	}
	return valid
}

func (es *exportService) rows(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]map[string]any, []string, error) {
	fields = sanitizeExportFields(fields)
	if limit <= 0 || limit > MaxExportRows {
		limit = MaxExportRows
	}

	result, err := es.segmentService.Query(ctx, tx, SegmentQueryInput{
		Filters: filterRules,
		Logic:   logic,
		Limit:   limit,
	})
	if err != nil {
		return nil, nil, err
	}

	userIDs := make([]uuid.UUID, 0, len(result.Learners))
	for _, learner := range result.Learners {
		userIDs = append(userIDs, learner.ID)
	}
	tagsByUser, err := es.assignmentRepo.TagNamesByUserIDs(ctx, tx, userIDs)
	if err != nil {
		es.log.Warn("Loading tags for export failed, exporting without tags", "error", err)
		tagsByUser = map[uuid.UUID][]string{}
	}

	rows := make([]map[string]any, 0, len(result.Learners))
	for _, learner := range result.Learners {
		row := make(map[string]any, len(fields))
		for _, field := range fields {
			row[field] = fieldValue(learner, tagsByUser[learner.ID], field)
		}
		rows = append(rows, row)
	}
	return rows, fields, nil
}

func fieldValue(learner *types.User, tags []string, field string) any {
	switch field {
	case "id":
		return learner.ID.String()
	case "email":
		return learner.Email
	case "first_name":
		return learner.FirstName
	case "last_name":
		return learner.LastName
	case "role":
		return learner.Role
	case "locale":
		return learner.Locale
	case "status":
		return learner.Status
	case "tags":
		if tags == nil {
			return []string{}
		}
		return tags
	case "last_active_at":
		if learner.LastActiveAt == nil {
			return nil
		}
		return learner.LastActiveAt.UTC().Format(time.RFC3339)
	case "created_at":
		return learner.CreatedAt.UTC().Format(time.RFC3339)
	}
	return nil
}

// cellString flattens a row value for tabular formats. Arrays render as a
// "; "-joined list; JSON export keeps them as real arrays.
func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, "; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (es *exportService) ExportCSV(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error) {
	rows, fields, err := es.rows(ctx, tx, filterRules, logic, fields, limit)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(fields); err != nil {
		return nil, err
	}
	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = cellString(row[field])
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var tsvFlattener = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// ExportExcel writes a tab-separated file with a UTF-8 BOM so spreadsheet
// tools auto-detect the encoding. TSV has no quoting convention, so embedded
// tabs and newlines are flattened to spaces.
func (es *exportService) ExportExcel(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error) {
	rows, fields, err := es.rows(ctx, tx, filterRules, logic, fields, limit)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("\uFEFF")
	buf.WriteString(strings.Join(fields, "\t"))
	buf.WriteString("\n")
	cells := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			cells[i] = tsvFlattener.Replace(cellString(row[field]))
		}
		buf.WriteString(strings.Join(cells, "\t"))
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ExportJSON is the only format that preserves arrays and nested values
// losslessly.
func (es *exportService) ExportJSON(ctx context.Context, tx *gorm.DB, filterRules []types.FilterRule, logic string, fields []string, limit int) ([]byte, error) {
	rows, _, err := es.rows(ctx, tx, filterRules, logic, fields, limit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rows)
}
