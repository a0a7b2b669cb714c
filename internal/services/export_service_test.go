package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	"github.com/fluentora/fluentora-backend/internal/data/repos/testutil"
	types "github.com/fluentora/fluentora-backend/internal/domain"
)

func newExportServiceForTest(t *testing.T) (ExportService, *testutilHandles) {
	t.Helper()
	h := newTestutilHandles(t)
	segmentService := NewSegmentService(h.tx, h.log,
		repos.NewLearnerQueryRepo(h.tx, h.log),
		repos.NewSegmentRepo(h.tx, h.log))
	service := NewExportService(h.tx, h.log, segmentService,
		repos.NewTagAssignmentRepo(h.tx, h.log))
	return service, h
}

func TestSanitizeExportFields(t *testing.T) {
	if got := sanitizeExportFields(nil); len(got) != len(defaultExportFields) {
		t.Fatalf("empty selection must fall back to defaults, got %v", got)
	}
	got := sanitizeExportFields([]string{"email", "password_hash", "tags"})
	if len(got) != 2 || got[0] != "email" || got[1] != "tags" {
		t.Fatalf("unknown fields must be dropped, got %v", got)
	}
	if got := sanitizeExportFields([]string{"nope"}); len(got) != len(defaultExportFields) {
		t.Fatalf("all-invalid selection must fall back to defaults, got %v", got)
	}
}

func TestExportCSVRoundTripsSpecialCharacters(t *testing.T) {
	service, h := newExportServiceForTest(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, h.tx, "obrien@fluentora.test", types.RoleLearner)
	// Name with the full quoting gauntlet.
	if err := h.tx.WithContext(ctx).Model(u).
		Updates(map[string]any{"first_name": `O'Brien, James "Jim"`, "last_name": "Smith\nJones"}).Error; err != nil {
		t.Fatalf("update user: %v", err)
	}

	payload, err := service.ExportCSV(ctx, h.tx, nil, types.LogicAnd, []string{"email", "first_name", "last_name"}, 10)
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	row := records[1]
	if row[1] != `O'Brien, James "Jim"` {
		t.Fatalf("first name did not round-trip: %q", row[1])
	}
	if row[2] != "Smith\nJones" {
		t.Fatalf("embedded newline did not round-trip: %q", row[2])
	}
}

func TestExportExcelBOMAndFlattening(t *testing.T) {
	service, h := newExportServiceForTest(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, h.tx, "tsv@fluentora.test", types.RoleLearner)
	if err := h.tx.WithContext(ctx).Model(u).
		Update("first_name", "tab\there\nand newline").Error; err != nil {
		t.Fatalf("update user: %v", err)
	}

	payload, err := service.ExportExcel(ctx, h.tx, nil, types.LogicAnd, []string{"email", "first_name"}, 10)
	if err != nil {
		t.Fatalf("export excel: %v", err)
	}

	if !bytes.HasPrefix(payload, []byte("\uFEFF")) {
		t.Fatal("excel export must start with a UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimRight(string(payload[3:]), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	cells := strings.Split(lines[1], "\t")
	if len(cells) != 2 {
		t.Fatalf("tab inside a value leaked into the layout: %q", lines[1])
	}
	if cells[1] != "tab here and newline" {
		t.Fatalf("control characters not flattened: %q", cells[1])
	}
}

func TestExportJSONKeepsTagArrays(t *testing.T) {
	service, h := newExportServiceForTest(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, h.tx, "json@fluentora.test", types.RoleLearner)
	vip := testutil.SeedTag(t, ctx, h.tx, "vip")
	beta := testutil.SeedTag(t, ctx, h.tx, "beta")
	testutil.SeedTagAssignment(t, ctx, h.tx, vip.ID, u.ID)
	testutil.SeedTagAssignment(t, ctx, h.tx, beta.ID, u.ID)

	payload, err := service.ExportJSON(ctx, h.tx, nil, types.LogicAnd, []string{"email", "tags"}, 10)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(payload, &rows); err != nil {
		t.Fatalf("parse exported json: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	tags, ok := rows[0]["tags"].([]any)
	if !ok {
		t.Fatalf("tags must stay a real array in JSON, got %T", rows[0]["tags"])
	}
	if len(tags) != 2 {
		t.Fatalf("expected both tags, got %v", tags)
	}
	if _, present := rows[0]["first_name"]; present {
		t.Fatal("unselected field leaked into the projection")
	}
}
