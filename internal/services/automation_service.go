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
	"github.com/fluentora/fluentora-backend/internal/domain/automation"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

type CreateSequenceInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Trigger     string         `json:"trigger"`
	Steps       datatypes.JSON `json:"steps"`
}

type UpdateSequenceInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Trigger     *string         `json:"trigger"`
	Status      *string         `json:"status"`
	Steps       *datatypes.JSON `json:"steps"`
}

// SequenceAnalytics aggregates delivery outcomes for one sequence. Rates are
// one-decimal percentage strings so clients render them as-is.
type SequenceAnalytics struct {
	SequenceID      uuid.UUID `json:"sequence_id"`
	EnrollmentCount int64     `json:"enrollment_count"`
	CompletionCount int64     `json:"completion_count"`
	TotalSent       int64     `json:"total_sent"`
	TotalOpened     int64     `json:"total_opened"`
	TotalClicked    int64     `json:"total_clicked"`
	TotalBounced    int64     `json:"total_bounced"`
	OpenRate        string    `json:"open_rate"`
	ClickRate       string    `json:"click_rate"`
	BounceRate      string    `json:"bounce_rate"`
	CompletionRate  string    `json:"completion_rate"`
}

type AutomationService interface {
	EnrollByTrigger(ctx context.Context, tx *gorm.DB, trigger string, userID uuid.UUID, metadata map[string]any) ([]*types.Enrollment, error)
	ProcessQueue(ctx context.Context) (processed int, errored int)
	CreateSequence(ctx context.Context, tx *gorm.DB, input CreateSequenceInput, actorID uuid.UUID) (*types.Sequence, error)
	UpdateSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID, input UpdateSequenceInput) (*types.Sequence, error)
	DeleteSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error
	ListSequences(ctx context.Context, tx *gorm.DB) ([]*types.Sequence, error)
	GetSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (*types.Sequence, *SequenceAnalytics, error)
	ListEnrollments(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.Enrollment, error)
	Analytics(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (*SequenceAnalytics, error)
	TrackOpen(ctx context.Context, tx *gorm.DB, logID uuid.UUID) (bool, error)
	TrackClick(ctx context.Context, tx *gorm.DB, logID uuid.UUID) (bool, error)
}

type automationService struct {
	db             *gorm.DB
	log            *logger.Logger
	sequenceRepo   repos.SequenceRepo
	enrollmentRepo repos.EnrollmentRepo
	logRepo        repos.SequenceLogRepo
	userRepo       repos.UserRepo
	flagService    FlagService
	mailer         Mailer
	now            func() time.Time
}

func NewAutomationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sequenceRepo repos.SequenceRepo,
	enrollmentRepo repos.EnrollmentRepo,
	logRepo repos.SequenceLogRepo,
	userRepo repos.UserRepo,
	flagService FlagService,
	mailer Mailer,
) AutomationService {
	if mailer == nil {
		mailer = NopMailer{}
	}
	return &automationService{
		db:             db,
		log:            baseLog.With("service", "AutomationService"),
		sequenceRepo:   sequenceRepo,
		enrollmentRepo: enrollmentRepo,
		logRepo:        logRepo,
		userRepo:       userRepo,
		flagService:    flagService,
		mailer:         mailer,
		now:            time.Now,
	}
}

// EnrollByTrigger enrolls the user into every active sequence listening on
// trigger. The whole path sits behind the automation feature flag, and a user
// with a live enrollment in a sequence is never enrolled into it again.
func (as *automationService) EnrollByTrigger(ctx context.Context, tx *gorm.DB, trigger string, userID uuid.UUID, metadata map[string]any) ([]*types.Enrollment, error) {
	if !types.ValidTrigger(trigger) {
		return nil, fmt.Errorf("unknown trigger %q", trigger)
	}

	users, err := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	enrollee := users[0]

	if !as.flagService.IsEnabled(ctx, AutomationFlagKey, EvalContext{UserID: userID, Role: enrollee.Role}) {
		as.log.Debug("Automation disabled by flag, skipping enrollment",
			"trigger", trigger, "userId", userID)
		return []*types.Enrollment{}, nil
	}

	sequences, err := as.sequenceRepo.ListActiveByTrigger(ctx, tx, trigger)
	if err != nil {
		return nil, err
	}

	var metadataJSON datatypes.JSON
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode enrollment metadata: %w", err)
		}
		metadataJSON = datatypes.JSON(raw)
	}

	enrolled := make([]*types.Enrollment, 0, len(sequences))
	for _, sequence := range sequences {
		live, err := as.enrollmentRepo.HasLive(ctx, tx, sequence.ID, userID)
		if err != nil {
			return enrolled, err
		}
		if live {
			continue
		}

		enrollment := &types.Enrollment{
			ID:          uuid.New(),
			SequenceID:  sequence.ID,
			UserID:      userID,
			CurrentStep: 0,
			Status:      types.EnrollmentStatusActive,
			Metadata:    metadataJSON,
			EnrolledAt:  as.now().UTC(),
		}
		created, err := as.enrollmentRepo.Create(ctx, tx, enrollment)
		if err != nil {
			// Concurrent enrollment of the same user lost the race against
			// the live-enrollment unique index. That is the index doing its
			// job, not a failure.
			if repos.IsUniqueViolation(err) {
				as.log.Debug("Concurrent enrollment suppressed by unique index",
					"sequenceId", sequence.ID, "userId", userID)
				continue
			}
			return enrolled, err
		}
		if err := as.sequenceRepo.IncrementEnrollmentCount(ctx, tx, sequence.ID); err != nil {
			as.log.Warn("Incrementing enrollment count failed",
				"sequenceId", sequence.ID, "error", err)
		}
		enrolled = append(enrolled, created)
	}
	return enrolled, nil
}

// ProcessQueue advances every active enrollment by at most one persisted step
// per pass, an email send or an elapsed delay. Each enrollment is claimed
// before any work happens, so concurrent queue runs never double-send; a
// failed or panicking enrollment is isolated and counted, never aborting the
// sweep.
func (as *automationService) ProcessQueue(ctx context.Context) (int, int) {
	enrollments, err := as.enrollmentRepo.ListActive(ctx, nil)
	if err != nil {
		as.log.Error("Listing active enrollments failed", "error", err)
		return 0, 1
	}

	processed := 0
	errored := 0
	for _, enrollment := range enrollments {
		if ctx.Err() != nil {
			break
		}
		claimed, err := as.enrollmentRepo.Claim(ctx, nil, enrollment.ID)
		if err != nil {
			as.log.Error("Claiming enrollment failed", "enrollmentId", enrollment.ID, "error", err)
			errored++
			continue
		}
		if !claimed {
			continue
		}
		if err := as.processEnrollment(ctx, enrollment); err != nil {
			as.log.Error("Processing enrollment failed",
				"enrollmentId", enrollment.ID, "sequenceId", enrollment.SequenceID, "error", err)
			errored++
			continue
		}
		processed++
	}
	return processed, errored
}

// processEnrollment holds the claim for one enrollment. It must leave the row
// in active, completed or cancelled state on every path, including panics in
// step handling.
func (as *automationService) processEnrollment(ctx context.Context, claimed *types.Enrollment) (err error) {
	enrollment := claimed
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing enrollment %s: %v", enrollment.ID, r)
			if relErr := as.enrollmentRepo.Release(ctx, nil, enrollment.ID, enrollment.CurrentStep, nil); relErr != nil {
				as.log.Error("Releasing enrollment after panic failed",
					"enrollmentId", enrollment.ID, "error", relErr)
			}
		}
	}()

	// The queue listing is a snapshot taken before the claim; another worker
	// may have advanced this enrollment in between. Work from a fresh read so
	// the step pointer is never stale.
	rows, err := as.enrollmentRepo.GetByIDs(ctx, nil, []uuid.UUID{claimed.ID})
	if err != nil {
		if relErr := as.enrollmentRepo.Release(ctx, nil, claimed.ID, claimed.CurrentStep, nil); relErr != nil {
			as.log.Error("Releasing enrollment failed", "enrollmentId", claimed.ID, "error", relErr)
		}
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("enrollment %s not found", claimed.ID)
	}
	enrollment = rows[0]

	sequences, err := as.sequenceRepo.GetByIDs(ctx, nil, []uuid.UUID{enrollment.SequenceID})
	if err != nil {
		if relErr := as.enrollmentRepo.Release(ctx, nil, enrollment.ID, enrollment.CurrentStep, nil); relErr != nil {
			as.log.Error("Releasing enrollment failed", "enrollmentId", enrollment.ID, "error", relErr)
		}
		return err
	}
	if len(sequences) == 0 {
		as.log.Warn("Enrollment references missing sequence, cancelling",
			"enrollmentId", enrollment.ID, "sequenceId", enrollment.SequenceID)
		return as.cancel(ctx, enrollment, fmt.Errorf("sequence %s not found", enrollment.SequenceID))
	}
	sequence := sequences[0]

	if sequence.Status != types.SequenceStatusActive {
		// Paused and archived sequences hold their enrollments in place.
		return as.enrollmentRepo.Release(ctx, nil, enrollment.ID, enrollment.CurrentStep, nil)
	}

	steps, err := automation.DecodeSteps(sequence.Steps)
	if err != nil {
		as.log.Warn("Sequence has undecodable steps, cancelling enrollment",
			"sequenceId", sequence.ID, "enrollmentId", enrollment.ID, "error", err)
		return as.cancel(ctx, enrollment, err)
	}

	users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{enrollment.UserID})
	if err != nil {
		if relErr := as.enrollmentRepo.Release(ctx, nil, enrollment.ID, enrollment.CurrentStep, nil); relErr != nil {
			as.log.Error("Releasing enrollment failed", "enrollmentId", enrollment.ID, "error", relErr)
		}
		return err
	}
	if len(users) == 0 {
		return as.cancel(ctx, enrollment, fmt.Errorf("user %s not found", enrollment.UserID))
	}
	enrollee := users[0]

	idx := enrollment.CurrentStep
	for idx < len(steps) {
		switch step := steps[idx].(type) {
		case types.DelayStep:
			if !as.delayElapsed(enrollment, step) {
				return as.enrollmentRepo.Release(ctx, nil, enrollment.ID, idx, nil)
			}
			// An elapsed delay consumes the pass and re-anchors last_step_at,
			// so a chain of delays waits out each one in full.
			steppedAt := as.now().UTC()
			return as.enrollmentRepo.Release(ctx, nil, enrollment.ID, idx+1, &steppedAt)
		case types.ConditionStep:
			if evaluateCondition(enrollee, step) {
				idx++
			} else {
				// A failed condition skips the step it guards.
				idx += 2
			}
		case types.EmailStep:
			if err := as.sendStepEmail(ctx, sequence, enrollment, enrollee, idx, step); err != nil {
				if relErr := as.enrollmentRepo.Release(ctx, nil, enrollment.ID, idx, nil); relErr != nil {
					as.log.Error("Releasing enrollment failed", "enrollmentId", enrollment.ID, "error", relErr)
				}
				return err
			}
			sentAt := as.now().UTC()
			return as.enrollmentRepo.Release(ctx, nil, enrollment.ID, idx+1, &sentAt)
		default:
			return as.cancel(ctx, enrollment, fmt.Errorf("unhandled step kind %q", steps[idx].StepKind()))
		}
	}

	done, err := as.enrollmentRepo.Complete(ctx, nil, enrollment.ID, as.now().UTC())
	if err != nil {
		return err
	}
	if done {
		if err := as.sequenceRepo.IncrementCompletionCount(ctx, nil, sequence.ID); err != nil {
			as.log.Warn("Incrementing completion count failed",
				"sequenceId", sequence.ID, "error", err)
		}
	}
	return nil
}

func (as *automationService) cancel(ctx context.Context, enrollment *types.Enrollment, cause error) error {
	if err := as.enrollmentRepo.Cancel(ctx, nil, enrollment.ID); err != nil {
		return err
	}
	return cause
}

// delayElapsed gates on the last step transition, falling back to enrollment
// time for a delay in first position.
func (as *automationService) delayElapsed(enrollment *types.Enrollment, step types.DelayStep) bool {
	since := enrollment.EnrolledAt
	if enrollment.LastStepAt != nil {
		since = *enrollment.LastStepAt
	}
	wait := time.Duration(step.DelayDays)*24*time.Hour + time.Duration(step.DelayHours)*time.Hour
	return !as.now().UTC().Before(since.Add(wait))
}

// evaluateCondition compares one user attribute. Unknown fields and operators
// evaluate false, so a misconfigured condition withholds the guarded step
// instead of sending it to everyone.
func evaluateCondition(enrollee *types.User, step types.ConditionStep) bool {
	if actual, ok := conditionTime(enrollee, step.Field); ok {
		expected, err := time.Parse(time.RFC3339, stringValue(step.Value))
		if err != nil {
			return false
		}
		switch step.Operator {
		case "greater_than":
			return actual.After(expected)
		case "less_than":
			return actual.Before(expected)
		}
		return false
	}

	var actual string
	switch step.Field {
	case "email":
		actual = enrollee.Email
	case "first_name":
		actual = enrollee.FirstName
	case "last_name":
		actual = enrollee.LastName
	case "role":
		actual = enrollee.Role
	case "locale":
		actual = enrollee.Locale
	case "status":
		actual = enrollee.Status
	default:
		return false
	}

	expected, ok := step.Value.(string)
	if !ok {
		return false
	}
	switch step.Operator {
	case "equals":
		return actual == expected
	case "not_equals":
		return actual != expected
	case "contains":
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case "greater_than":
		return actual > expected
	case "less_than":
		return actual < expected
	}
	return false
}

func conditionTime(enrollee *types.User, field string) (time.Time, bool) {
	switch field {
	case "created_at":
		return enrollee.CreatedAt, true
	case "last_active_at":
		// A user who was never active fails every time comparison.
		if enrollee.LastActiveAt == nil {
			return time.Time{}, false
		}
		return *enrollee.LastActiveAt, true
	}
	return time.Time{}, false
}

func (as *automationService) sendStepEmail(ctx context.Context, sequence *types.Sequence, enrollment *types.Enrollment, enrollee *types.User, stepIndex int, step types.EmailStep) error {
	entry := &types.SequenceLog{
		ID:           uuid.New(),
		EnrollmentID: enrollment.ID,
		SequenceID:   sequence.ID,
		UserID:       enrollee.ID,
		StepIndex:    stepIndex,
		Subject:      step.Subject,
		Status:       types.LogStatusSent,
		SentAt:       as.now().UTC(),
	}
	if _, err := as.logRepo.Create(ctx, nil, []*types.SequenceLog{entry}); err != nil {
		return fmt.Errorf("record sequence log: %w", err)
	}

	// Delivery is best effort: a provider outage must not wedge the
	// enrollment, and the bounce webhook corrects the log later.
	if err := as.mailer.Send(ctx, enrollee.Email, step.Subject, step.Body); err != nil {
		as.log.Warn("Sending sequence email failed",
			"enrollmentId", enrollment.ID, "stepIndex", stepIndex, "error", err)
		if _, markErr := as.logRepo.MarkBounced(ctx, nil, entry.ID, as.now().UTC()); markErr != nil {
			as.log.Warn("Marking sequence log bounced failed", "logId", entry.ID, "error", markErr)
		}
	}
	return nil
}

func (as *automationService) CreateSequence(ctx context.Context, tx *gorm.DB, input CreateSequenceInput, actorID uuid.UUID) (*types.Sequence, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("sequence name is required")
	}
	if !types.ValidTrigger(input.Trigger) {
		return nil, fmt.Errorf("unknown trigger %q", input.Trigger)
	}
	steps, err := automation.DecodeSteps(input.Steps)
	if err != nil {
		return nil, fmt.Errorf("invalid steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("sequence needs at least one step")
	}

	sequence := &types.Sequence{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Trigger:     input.Trigger,
		Status:      types.SequenceStatusDraft,
		Steps:       input.Steps,
		CreatedBy:   actorID,
	}
	return as.sequenceRepo.Create(ctx, tx, sequence)
}

func validSequenceStatus(status string) bool {
	switch status {
	case types.SequenceStatusDraft, types.SequenceStatusActive,
		types.SequenceStatusPaused, types.SequenceStatusArchived:
		return true
	}
	return false
}

func (as *automationService) UpdateSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID, input UpdateSequenceInput) (*types.Sequence, error) {
	found, err := as.sequenceRepo.GetByIDs(ctx, tx, []uuid.UUID{sequenceID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repos.ErrSequenceNotFound
	}
	sequence := found[0]

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("sequence name is required")
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Trigger != nil {
		if !types.ValidTrigger(*input.Trigger) {
			return nil, fmt.Errorf("unknown trigger %q", *input.Trigger)
		}
		updates["trigger"] = *input.Trigger
	}
	if input.Status != nil {
		if !validSequenceStatus(*input.Status) {
			return nil, fmt.Errorf("unknown status %q", *input.Status)
		}
		updates["status"] = *input.Status
	}
	if input.Steps != nil {
		// Editing steps under live enrollments would shift every stored step
		// index. Pause or archive first.
		if sequence.Status == types.SequenceStatusActive &&
			(input.Status == nil || *input.Status == types.SequenceStatusActive) {
			return nil, fmt.Errorf("cannot edit steps of an active sequence")
		}
		steps, err := automation.DecodeSteps(*input.Steps)
		if err != nil {
			return nil, fmt.Errorf("invalid steps: %w", err)
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("sequence needs at least one step")
		}
		updates["steps"] = *input.Steps
	}
	if len(updates) == 0 {
		return sequence, nil
	}

	if err := as.sequenceRepo.Update(ctx, tx, sequenceID, updates); err != nil {
		return nil, err
	}
	refreshed, err := as.sequenceRepo.GetByIDs(ctx, tx, []uuid.UUID{sequenceID})
	if err != nil {
		return nil, err
	}
	if len(refreshed) == 0 {
		return nil, repos.ErrSequenceNotFound
	}
	return refreshed[0], nil
}

func (as *automationService) DeleteSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) error {
	found, err := as.sequenceRepo.GetByIDs(ctx, tx, []uuid.UUID{sequenceID})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return repos.ErrSequenceNotFound
	}
	switch found[0].Status {
	case types.SequenceStatusDraft, types.SequenceStatusArchived:
		return as.sequenceRepo.Delete(ctx, tx, sequenceID)
	}
	return fmt.Errorf("only draft or archived sequences can be deleted")
}

func (as *automationService) ListSequences(ctx context.Context, tx *gorm.DB) ([]*types.Sequence, error) {
	return as.sequenceRepo.List(ctx, tx)
}

func (as *automationService) GetSequence(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (*types.Sequence, *SequenceAnalytics, error) {
	found, err := as.sequenceRepo.GetByIDs(ctx, tx, []uuid.UUID{sequenceID})
	if err != nil {
		return nil, nil, err
	}
	if len(found) == 0 {
		return nil, nil, repos.ErrSequenceNotFound
	}
	analytics, err := as.analyticsFor(ctx, tx, found[0])
	if err != nil {
		return nil, nil, err
	}
	return found[0], analytics, nil
}

func (as *automationService) ListEnrollments(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) ([]*types.Enrollment, error) {
	return as.enrollmentRepo.ListBySequence(ctx, tx, sequenceID)
}

func (as *automationService) Analytics(ctx context.Context, tx *gorm.DB, sequenceID uuid.UUID) (*SequenceAnalytics, error) {
	found, err := as.sequenceRepo.GetByIDs(ctx, tx, []uuid.UUID{sequenceID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repos.ErrSequenceNotFound
	}
	return as.analyticsFor(ctx, tx, found[0])
}

// rateString renders part/whole as a one-decimal percentage, "0.0" for an
// empty denominator.
func rateString(part, whole int64) string {
	if whole == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(part)/float64(whole)*100)
}

func (as *automationService) analyticsFor(ctx context.Context, tx *gorm.DB, sequence *types.Sequence) (*SequenceAnalytics, error) {
	counts, err := as.logRepo.StatusCounts(ctx, tx, sequence.ID)
	if err != nil {
		return nil, err
	}

	totalSent := counts[types.LogStatusSent] + counts[types.LogStatusOpened] +
		counts[types.LogStatusClicked] + counts[types.LogStatusBounced]
	// A clicked mail was necessarily opened even if the open pixel never
	// fired.
	totalOpened := counts[types.LogStatusOpened] + counts[types.LogStatusClicked]
	totalClicked := counts[types.LogStatusClicked]
	totalBounced := counts[types.LogStatusBounced]

	return &SequenceAnalytics{
		SequenceID:      sequence.ID,
		EnrollmentCount: sequence.EnrollmentCount,
		CompletionCount: sequence.CompletionCount,
		TotalSent:       totalSent,
		TotalOpened:     totalOpened,
		TotalClicked:    totalClicked,
		TotalBounced:    totalBounced,
		OpenRate:        rateString(totalOpened, totalSent),
		ClickRate:       rateString(totalClicked, totalSent),
		BounceRate:      rateString(totalBounced, totalSent),
		CompletionRate:  rateString(sequence.CompletionCount, sequence.EnrollmentCount),
	}, nil
}

func (as *automationService) TrackOpen(ctx context.Context, tx *gorm.DB, logID uuid.UUID) (bool, error) {
	return as.logRepo.MarkOpened(ctx, tx, logID, as.now().UTC())
}

func (as *automationService) TrackClick(ctx context.Context, tx *gorm.DB, logID uuid.UUID) (bool, error) {
	return as.logRepo.MarkClicked(ctx, tx, logID, as.now().UTC())
}
