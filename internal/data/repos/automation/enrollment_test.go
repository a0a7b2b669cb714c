package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos/testutil"
	types "github.com/fluentora/fluentora-backend/internal/domain"
)

func newEnrollmentRepoForTest(t *testing.T) (EnrollmentRepo, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	return NewEnrollmentRepo(tx, testutil.Logger(t)), tx
}

func seedActiveEnrollment(t *testing.T, ctx context.Context, tx *gorm.DB) *types.Enrollment {
	t.Helper()
	user := testutil.SeedUser(t, ctx, tx, uuid.NewString()+"@fluentora.test", types.RoleLearner)
	sequence := testutil.SeedSequence(t, ctx, tx, types.TriggerUserSignup, types.SequenceStatusActive, nil)
	return testutil.SeedEnrollment(t, ctx, tx, sequence.ID, user.ID, 0)
}

func TestClaimIsExclusive(t *testing.T) {
	repo, tx := newEnrollmentRepoForTest(t)
	ctx := context.Background()
	e := seedActiveEnrollment(t, ctx, tx)

	claimed, err := repo.Claim(ctx, tx, e.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim on an active enrollment must succeed")
	}

	claimed, err = repo.Claim(ctx, tx, e.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("a claimed enrollment must not be claimable again")
	}
}

func TestReleaseRequiresClaim(t *testing.T) {
	repo, tx := newEnrollmentRepoForTest(t)
	ctx := context.Background()
	e := seedActiveEnrollment(t, ctx, tx)

	if err := repo.Release(ctx, tx, e.ID, 1, nil); err == nil {
		t.Fatal("releasing an unclaimed enrollment must fail")
	}

	if _, err := repo.Claim(ctx, tx, e.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	stepAt := time.Now().UTC()
	if err := repo.Release(ctx, tx, e.ID, 2, &stepAt); err != nil {
		t.Fatalf("release: %v", err)
	}

	var reloaded types.Enrollment
	if err := tx.First(&reloaded, "id = ?", e.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != types.EnrollmentStatusActive || reloaded.CurrentStep != 2 {
		t.Fatalf("release should restore active at step 2, got %s step %d", reloaded.Status, reloaded.CurrentStep)
	}
	if reloaded.LastStepAt == nil {
		t.Fatal("release with a timestamp must stamp last_step_at")
	}
}

func TestCompleteOnlyFromProcessing(t *testing.T) {
	repo, tx := newEnrollmentRepoForTest(t)
	ctx := context.Background()
	e := seedActiveEnrollment(t, ctx, tx)

	done, err := repo.Complete(ctx, tx, e.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done {
		t.Fatal("completing an unclaimed enrollment must be a no-op")
	}

	if _, err := repo.Claim(ctx, tx, e.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	done, err = repo.Complete(ctx, tx, e.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done {
		t.Fatal("completing a claimed enrollment must apply")
	}

	// Terminal state: no further claim, no second completion.
	if done, _ = repo.Complete(ctx, tx, e.ID, time.Now().UTC()); done {
		t.Fatal("completion must fire at most once")
	}
	if claimed, _ := repo.Claim(ctx, tx, e.ID); claimed {
		t.Fatal("a completed enrollment must not be claimable")
	}
}

func TestLiveEnrollmentUniqueIndex(t *testing.T) {
	repo, tx := newEnrollmentRepoForTest(t)
	ctx := context.Background()
	e := seedActiveEnrollment(t, ctx, tx)

	dup := &types.Enrollment{
		ID:         uuid.New(),
		SequenceID: e.SequenceID,
		UserID:     e.UserID,
		Status:     types.EnrollmentStatusActive,
		EnrolledAt: time.Now().UTC(),
	}
	// Savepoint keeps the outer test transaction usable past the violation.
	err := tx.Transaction(func(inner *gorm.DB) error {
		_, err := repo.Create(ctx, inner, dup)
		return err
	})
	if err == nil {
		t.Fatal("a second live enrollment for the same user must violate the index")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("expected a unique violation, got %v", err)
	}

	// A terminal enrollment frees the slot for re-enrollment.
	if err := repo.Cancel(ctx, tx, e.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := repo.Create(ctx, tx, dup); err != nil {
		t.Fatalf("re-enrollment after cancellation should succeed: %v", err)
	}

	live, err := repo.HasLive(ctx, tx, e.SequenceID, e.UserID)
	if err != nil {
		t.Fatalf("has live: %v", err)
	}
	if !live {
		t.Fatal("the re-enrollment should count as live")
	}
}

func TestListActiveExcludesTerminalStates(t *testing.T) {
	repo, tx := newEnrollmentRepoForTest(t)
	ctx := context.Background()

	active := seedActiveEnrollment(t, ctx, tx)
	cancelled := seedActiveEnrollment(t, ctx, tx)
	if err := repo.Cancel(ctx, tx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	list, err := repo.ListActive(ctx, tx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, e := range list {
		if e.ID == cancelled.ID {
			t.Fatal("cancelled enrollment leaked into the active list")
		}
	}
	found := false
	for _, e := range list {
		if e.ID == active.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("active enrollment missing from the list")
	}
}
