package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fluentora/fluentora-backend/internal/data/repos"
	"github.com/fluentora/fluentora-backend/internal/data/repos/testutil"
	types "github.com/fluentora/fluentora-backend/internal/domain"
	"github.com/fluentora/fluentora-backend/internal/domain/automation"
)

type capturedMail struct {
	To      string
	Subject string
	Body    string
}

type captureMailer struct {
	sent []capturedMail
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, capturedMail{To: to, Subject: subject, Body: body})
	return nil
}

type automationFixture struct {
	h       *testutilHandles
	service *automationService
	mailer  *captureMailer
	clock   time.Time
}

func newAutomationFixture(t *testing.T) *automationFixture {
	t.Helper()
	h := newTestutilHandles(t)

	flagService := NewFlagService(h.tx, h.log,
		repos.NewFlagRepo(h.tx, h.log),
		repos.NewFlagHistoryRepo(h.tx, h.log),
		NewLocalFlagCache(time.Minute),
		types.EnvironmentDevelopment)

	mailer := &captureMailer{}
	service := NewAutomationService(h.tx, h.log,
		repos.NewSequenceRepo(h.tx, h.log),
		repos.NewEnrollmentRepo(h.tx, h.log),
		repos.NewSequenceLogRepo(h.tx, h.log),
		repos.NewUserRepo(h.tx, h.log),
		flagService,
		mailer,
	).(*automationService)

	f := &automationFixture{h: h, service: service, mailer: mailer, clock: time.Now().UTC()}
	service.now = func() time.Time { return f.clock }
	return f
}

func mustSteps(t *testing.T, steps ...types.Step) datatypes.JSON {
	t.Helper()
	raw, err := automation.EncodeSteps(steps)
	if err != nil {
		t.Fatalf("encode steps: %v", err)
	}
	return raw
}

func (f *automationFixture) reloadEnrollment(t *testing.T, id uuid.UUID) *types.Enrollment {
	t.Helper()
	var e types.Enrollment
	if err := f.h.tx.First(&e, "id = ?", id).Error; err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	return &e
}

func (f *automationFixture) reloadSequence(t *testing.T, id uuid.UUID) *types.Sequence {
	t.Helper()
	var s types.Sequence
	if err := f.h.tx.First(&s, "id = ?", id).Error; err != nil {
		t.Fatalf("reload sequence: %v", err)
	}
	return &s
}

func TestEnrollByTriggerIsIdempotent(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "enroll@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "Welcome", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, map[string]any{"source": "test"})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if len(enrolled) != 1 {
		t.Fatalf("expected 1 enrollment, got %d", len(enrolled))
	}

	again, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("live enrollment must suppress re-enrollment, got %d new", len(again))
	}

	if got := f.reloadSequence(t, sequence.ID).EnrollmentCount; got != 1 {
		t.Fatalf("enrollment count should be 1, got %d", got)
	}
}

func TestEnrollByTriggerGatedByFlag(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, false, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "gated@fluentora.test", types.RoleLearner)
	testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "Welcome", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if len(enrolled) != 0 {
		t.Fatalf("disabled flag must make enrollment a no-op, got %d", len(enrolled))
	}
}

func TestEnrollByTriggerRejectsUnknownTrigger(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()
	if _, err := f.service.EnrollByTrigger(ctx, f.h.tx, "user_sneezed", uuid.New(), nil); err == nil {
		t.Fatal("unknown trigger must error")
	}
}

func TestProcessQueueSendsEmailThenCompletes(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "steps@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "Welcome", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	enrollmentID := enrolled[0].ID

	processed, errored := f.service.ProcessQueue(ctx)
	if errored != 0 || processed != 1 {
		t.Fatalf("first pass: processed=%d errors=%d", processed, errored)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != "Welcome" || f.mailer.sent[0].To != user.Email {
		t.Fatalf("expected one welcome mail, got %+v", f.mailer.sent)
	}
	e := f.reloadEnrollment(t, enrollmentID)
	if e.Status != types.EnrollmentStatusActive || e.CurrentStep != 1 || e.LastStepAt == nil {
		t.Fatalf("after email: status=%s step=%d lastStepAt=%v", e.Status, e.CurrentStep, e.LastStepAt)
	}

	processed, errored = f.service.ProcessQueue(ctx)
	if errored != 0 || processed != 1 {
		t.Fatalf("second pass: processed=%d errors=%d", processed, errored)
	}
	e = f.reloadEnrollment(t, enrollmentID)
	if e.Status != types.EnrollmentStatusCompleted || e.CompletedAt == nil {
		t.Fatalf("enrollment should complete past the last step, status=%s", e.Status)
	}
	if got := f.reloadSequence(t, sequence.ID).CompletionCount; got != 1 {
		t.Fatalf("completion count should be 1, got %d", got)
	}

	// A completed enrollment never reappears in the queue.
	processed, _ = f.service.ProcessQueue(ctx)
	if processed != 0 {
		t.Fatalf("third pass should find nothing, processed=%d", processed)
	}
	if got := f.reloadSequence(t, sequence.ID).CompletionCount; got != 1 {
		t.Fatalf("completion must fire exactly once, count=%d", got)
	}
}

func TestProcessQueueDelayGates(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "delay@fluentora.test", types.RoleLearner)
	testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t,
			types.DelayStep{DelayDays: 1},
			types.EmailStep{Subject: "Day two", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	enrollmentID := enrolled[0].ID

	processed, errored := f.service.ProcessQueue(ctx)
	if errored != 0 || processed != 1 {
		t.Fatalf("pass during delay: processed=%d errors=%d", processed, errored)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("mail sent before the delay elapsed: %+v", f.mailer.sent)
	}
	e := f.reloadEnrollment(t, enrollmentID)
	if e.Status != types.EnrollmentStatusActive || e.CurrentStep != 0 {
		t.Fatalf("delay must hold the enrollment in place, status=%s step=%d", e.Status, e.CurrentStep)
	}

	f.clock = f.clock.Add(25 * time.Hour)
	if _, errored = f.service.ProcessQueue(ctx); errored != 0 {
		t.Fatalf("pass after delay errored")
	}
	e = f.reloadEnrollment(t, enrollmentID)
	if e.CurrentStep != 1 || e.LastStepAt == nil {
		t.Fatalf("elapsed delay must advance and stamp last_step_at, step=%d lastStepAt=%v",
			e.CurrentStep, e.LastStepAt)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("the delay pass itself must not send, got %+v", f.mailer.sent)
	}

	if _, errored = f.service.ProcessQueue(ctx); errored != 0 {
		t.Fatalf("email pass errored")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != "Day two" {
		t.Fatalf("expected the delayed mail, got %+v", f.mailer.sent)
	}
}

func TestProcessQueueConsecutiveDelaysEachWaitFully(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "twodelays@fluentora.test", types.RoleLearner)
	testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t,
			types.DelayStep{DelayDays: 1},
			types.DelayStep{DelayDays: 1},
			types.EmailStep{Subject: "Day three", Body: "hi"}))

	if _, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// One day in: the first delay elapses, the second re-anchors from now.
	f.clock = f.clock.Add(25 * time.Hour)
	for i := 0; i < 3; i++ {
		if _, errored := f.service.ProcessQueue(ctx); errored != 0 {
			t.Fatalf("pass %d errored", i)
		}
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("mail sent before both delays elapsed: %+v", f.mailer.sent)
	}

	f.clock = f.clock.Add(25 * time.Hour)
	for i := 0; i < 2; i++ {
		if _, errored := f.service.ProcessQueue(ctx); errored != 0 {
			t.Fatalf("late pass %d errored", i)
		}
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != "Day three" {
		t.Fatalf("expected the mail after both delays, got %+v", f.mailer.sent)
	}
}

func TestProcessQueueStaleSnapshotDoesNotResend(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "race@fluentora.test", types.RoleLearner)
	testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t,
			types.EmailStep{Subject: "First", Body: "hi"},
			types.EmailStep{Subject: "Second", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	// A second worker lists the queue and holds this snapshot at step 0.
	stale := enrolled[0]

	// The first worker runs a full pass and advances the row to step 1.
	if _, errored := f.service.ProcessQueue(ctx); errored != 0 {
		t.Fatal("first worker pass errored")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != "First" {
		t.Fatalf("expected the first step mail, got %+v", f.mailer.sent)
	}

	// The second worker now wins its claim and processes its stale snapshot.
	enrollmentRepo := repos.NewEnrollmentRepo(f.h.tx, f.h.log)
	claimed, err := enrollmentRepo.Claim(ctx, f.h.tx, stale.ID)
	if err != nil || !claimed {
		t.Fatalf("second worker claim: claimed=%v err=%v", claimed, err)
	}
	if err := f.service.processEnrollment(ctx, stale); err != nil {
		t.Fatalf("second worker processing: %v", err)
	}
	if len(f.mailer.sent) != 2 || f.mailer.sent[1].Subject != "Second" {
		t.Fatalf("stale snapshot must not resend step 0, got %+v", f.mailer.sent)
	}
	e := f.reloadEnrollment(t, stale.ID)
	if e.CurrentStep != 2 {
		t.Fatalf("enrollment should sit at step 2, got %d", e.CurrentStep)
	}
}

func TestProcessQueueConditionSkipsGuardedStep(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "cond@fluentora.test", types.RoleLearner)
	testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t,
			types.ConditionStep{Field: "role", Operator: "equals", Value: types.RoleCoach},
			types.EmailStep{Subject: "Coaches only", Body: "hi"},
			types.EmailStep{Subject: "Everyone", Body: "hi"}))

	if _, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	if _, errored := f.service.ProcessQueue(ctx); errored != 0 {
		t.Fatal("queue pass errored")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != "Everyone" {
		t.Fatalf("failed condition must skip only the guarded step, got %+v", f.mailer.sent)
	}
}

func TestProcessQueueCancelsOnMalformedSteps(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	testutil.SeedFlag(t, ctx, f.h.tx, AutomationFlagKey, true, 100)
	user := testutil.SeedUser(t, ctx, f.h.tx, "broken@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "ok", Body: "hi"}))

	enrolled, err := f.service.EnrollByTrigger(ctx, f.h.tx, types.TriggerUserSignup, user.ID, nil)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	if err := f.h.tx.Model(&types.Sequence{}).Where("id = ?", sequence.ID).
		Update("steps", datatypes.JSON([]byte(`[{"type":"teleport"}]`))).Error; err != nil {
		t.Fatalf("corrupt steps: %v", err)
	}

	processed, errored := f.service.ProcessQueue(ctx)
	if processed != 0 || errored != 1 {
		t.Fatalf("malformed steps should count as an error: processed=%d errors=%d", processed, errored)
	}
	e := f.reloadEnrollment(t, enrolled[0].ID)
	if e.Status != types.EnrollmentStatusCancelled {
		t.Fatalf("enrollment should be cancelled, status=%s", e.Status)
	}
}

func TestAnalyticsZeroSent(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "x", Body: "y"}))

	analytics, err := f.service.Analytics(ctx, f.h.tx, sequence.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.OpenRate != "0.0" || analytics.ClickRate != "0.0" || analytics.BounceRate != "0.0" {
		t.Fatalf("zero sends must yield 0.0 rates, got %+v", analytics)
	}
}

func TestAnalyticsRates(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, f.h.tx, "rates@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "x", Body: "y"}))
	e := testutil.SeedEnrollment(t, ctx, f.h.tx, sequence.ID, user.ID, 0)

	testutil.SeedSequenceLog(t, ctx, f.h.tx, e, 0, types.LogStatusSent)
	testutil.SeedSequenceLog(t, ctx, f.h.tx, e, 0, types.LogStatusOpened)
	testutil.SeedSequenceLog(t, ctx, f.h.tx, e, 0, types.LogStatusClicked)
	testutil.SeedSequenceLog(t, ctx, f.h.tx, e, 0, types.LogStatusBounced)

	analytics, err := f.service.Analytics(ctx, f.h.tx, sequence.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.TotalSent != 4 {
		t.Fatalf("total sent should cover all outcomes, got %d", analytics.TotalSent)
	}
	// Clicked implies opened.
	if analytics.TotalOpened != 2 {
		t.Fatalf("opened should count opened+clicked, got %d", analytics.TotalOpened)
	}
	if analytics.OpenRate != "50.0" {
		t.Fatalf("open rate should be 50.0, got %s", analytics.OpenRate)
	}
	if analytics.ClickRate != "25.0" {
		t.Fatalf("click rate should be 25.0, got %s", analytics.ClickRate)
	}
	if analytics.BounceRate != "25.0" {
		t.Fatalf("bounce rate should be 25.0, got %s", analytics.BounceRate)
	}
}

func TestTrackingTransitions(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, f.h.tx, "track@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "x", Body: "y"}))
	e := testutil.SeedEnrollment(t, ctx, f.h.tx, sequence.ID, user.ID, 0)
	entry := testutil.SeedSequenceLog(t, ctx, f.h.tx, e, 0, types.LogStatusSent)

	applied, err := f.service.TrackOpen(ctx, f.h.tx, entry.ID)
	if err != nil || !applied {
		t.Fatalf("open from sent should apply: applied=%v err=%v", applied, err)
	}
	if applied, _ = f.service.TrackOpen(ctx, f.h.tx, entry.ID); applied {
		t.Fatal("second open must be a no-op")
	}
	if applied, _ = f.service.TrackClick(ctx, f.h.tx, entry.ID); !applied {
		t.Fatal("click from opened should apply")
	}
	if applied, _ = f.service.TrackOpen(ctx, f.h.tx, entry.ID); applied {
		t.Fatal("open after click must be a no-op")
	}
}

func TestCreateSequenceValidation(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()
	actorID := uuid.New()

	if _, err := f.service.CreateSequence(ctx, f.h.tx, CreateSequenceInput{
		Name: "x", Trigger: "bad_trigger",
		Steps: mustSteps(t, types.EmailStep{Subject: "s", Body: "b"}),
	}, actorID); err == nil {
		t.Fatal("unknown trigger must be rejected")
	}

	if _, err := f.service.CreateSequence(ctx, f.h.tx, CreateSequenceInput{
		Name: "x", Trigger: types.TriggerUserSignup,
		Steps: datatypes.JSON([]byte(`[{"type":"teleport"}]`)),
	}, actorID); err == nil {
		t.Fatal("unknown step type must be rejected")
	}

	sequence, err := f.service.CreateSequence(ctx, f.h.tx, CreateSequenceInput{
		Name: "welcome", Trigger: types.TriggerUserSignup,
		Steps: mustSteps(t, types.EmailStep{Subject: "s", Body: "b"}),
	}, actorID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sequence.Status != types.SequenceStatusDraft {
		t.Fatalf("new sequences start as drafts, got %s", sequence.Status)
	}
}

func TestUpdateSequenceRejectsStepEditWhileActive(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	sequence := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "s", Body: "b"}))

	newSteps := mustSteps(t, types.EmailStep{Subject: "other", Body: "b"})
	if _, err := f.service.UpdateSequence(ctx, f.h.tx, sequence.ID, UpdateSequenceInput{
		Steps: &newSteps,
	}); err == nil {
		t.Fatal("step edit on an active sequence must be rejected")
	}

	paused := types.SequenceStatusPaused
	updated, err := f.service.UpdateSequence(ctx, f.h.tx, sequence.ID, UpdateSequenceInput{
		Status: &paused,
		Steps:  &newSteps,
	})
	if err != nil {
		t.Fatalf("pausing and editing together should work: %v", err)
	}
	if updated.Status != types.SequenceStatusPaused {
		t.Fatalf("status should be paused, got %s", updated.Status)
	}
}

func TestDeleteSequenceOnlyDraftOrArchived(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	active := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusActive,
		mustSteps(t, types.EmailStep{Subject: "s", Body: "b"}))
	if err := f.service.DeleteSequence(ctx, f.h.tx, active.ID); err == nil {
		t.Fatal("active sequences must not be deletable")
	}

	draft := testutil.SeedSequence(t, ctx, f.h.tx, types.TriggerUserSignup, types.SequenceStatusDraft,
		mustSteps(t, types.EmailStep{Subject: "s", Body: "b"}))
	if err := f.service.DeleteSequence(ctx, f.h.tx, draft.ID); err != nil {
		t.Fatalf("draft delete: %v", err)
	}
}
