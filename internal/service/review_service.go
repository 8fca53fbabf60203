package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/dto"
	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/pkg/database"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

const (
	minReviewLength = 10
	maxReviewLength = 1000
)

// User facing messages of the review lifecycle.
const (
	msgReviewPublished     = "Your review has been approved and published."
	msgReviewRejected      = "Your review was rejected because it does not follow the community guidelines."
	msgEditRejected        = "The edited review does not follow the community guidelines."
	msgReviewUpdated       = "Review updated successfully."
	msgReviewDeleted       = "Review deleted successfully."
	msgReviewNotFound      = "Review not found."
	msgProfessorNotFound   = "Professor not found."
	msgEditForbidden       = "You do not have permission to edit this review."
	msgDeleteForbidden     = "You do not have permission to delete this review."
	msgModerationDown      = "We could not verify your review right now. Please try again later."
	msgSubjectNotTaught    = "The selected subject is not taught by this professor."
	msgNothingToUpdate     = "No changes were provided."
	msgReviewTooShort      = "The review must be at least 10 characters long."
	msgReviewTooLong       = "The review cannot exceed 1000 characters."
	msgRatingOutOfRange    = "The rating must be between 1 and 5."
	msgInvalidReviewFields = "The review period or subject is invalid."
)

type transactor interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type reviewRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Review, error)
	Update(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type reviewProfessorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Professor, error)
	SubjectsFor(ctx context.Context, professorIDs []string) (map[string][]models.Subject, error)
}

type subjectLocker interface {
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type submitPolicy interface {
	CanSubmit(ctx context.Context, exec sqlx.ExtContext, userID string) (bool, string, error)
}

type aggregateRecomputer interface {
	Recompute(ctx context.Context, exec sqlx.ExtContext, professorID string, subjectIDs ...string) error
}

type professorCacheInvalidator interface {
	InvalidateProfessors(ctx context.Context)
}

// Actor is the account performing a review operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// ReviewOutcome is the structured result of a review operation. Failures carry
// Err with the category and a user facing Message; they are never returned as Go errors.
type ReviewOutcome struct {
	Success     bool
	Review      *models.Review
	ProfessorID string
	Message     string
	Err         *appErrors.Error
}

// Result converts the outcome into its response payload.
func (o ReviewOutcome) Result() dto.ReviewResult {
	res := dto.ReviewResult{Success: o.Success, Review: o.Review, Message: o.Message}
	if o.ProfessorID != "" {
		id := o.ProfessorID
		res.ProfessorID = &id
	}
	return res
}

func failure(template *appErrors.Error, message string) ReviewOutcome {
	return ReviewOutcome{Message: message, Err: appErrors.Clone(template, message)}
}

// submissionDeniedError carries the policy reason out of a transaction.
type submissionDeniedError struct{ reason string }

func (e *submissionDeniedError) Error() string { return e.reason }

func deniedOutcome(err error) (ReviewOutcome, bool) {
	var denied *submissionDeniedError
	if errors.As(err, &denied) {
		return failure(appErrors.ErrAccountSuspended, denied.reason), true
	}
	return ReviewOutcome{}, false
}

func persistenceFailure(err error, action string) ReviewOutcome {
	message := "Could not " + action + " the review. Please try again later."
	return ReviewOutcome{Message: message, Err: appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)}
}

// ReviewService coordinates the review lifecycle: access policy, moderation,
// persistence and aggregate recomputation, each write in a single transaction.
// Moderation runs before the transaction opens so a slow or failing classifier
// never holds row locks or leaves a half written review.
type ReviewService struct {
	tx         transactor
	reviews    reviewRepository
	professors reviewProfessorRepository
	subjects   subjectLocker
	policy     submitPolicy
	moderator  Moderator
	aggregator aggregateRecomputer
	cache      professorCacheInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// ReviewServiceDeps groups the collaborators of ReviewService.
type ReviewServiceDeps struct {
	Tx         transactor
	Reviews    reviewRepository
	Professors reviewProfessorRepository
	Subjects   subjectLocker
	Policy     submitPolicy
	Moderator  Moderator
	Aggregator aggregateRecomputer
	Cache      professorCacheInvalidator
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewReviewService constructs the coordinator.
func NewReviewService(deps ReviewServiceDeps) *ReviewService {
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ReviewService{
		tx:         deps.Tx,
		reviews:    deps.Reviews,
		professors: deps.Professors,
		subjects:   deps.Subjects,
		policy:     deps.Policy,
		moderator:  deps.Moderator,
		aggregator: deps.Aggregator,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		validator:  deps.Validator,
		logger:     deps.Logger,
	}
}

// Validate checks review content and rating.
func (s *ReviewService) Validate(content string, rating int) (bool, string) {
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) < minReviewLength {
		return false, msgReviewTooShort
	}
	if rating < 1 || rating > 5 {
		return false, msgRatingOutOfRange
	}
	if utf8.RuneCountInString(trimmed) > maxReviewLength {
		return false, msgReviewTooLong
	}
	return true, ""
}

// Create publishes a review by actor about professorID.
func (s *ReviewService) Create(ctx context.Context, professorID string, actor Actor, req dto.CreateReviewRequest) ReviewOutcome {
	outcome := s.create(ctx, professorID, actor, req)
	s.finish(ctx, "create", outcome)
	return outcome
}

func (s *ReviewService) create(ctx context.Context, professorID string, actor Actor, req dto.CreateReviewRequest) ReviewOutcome {
	if out, ok := s.precheckSubmit(ctx, actor.UserID); !ok {
		return out
	}

	if ok, msg := s.Validate(req.Content, req.Rating); !ok {
		return failure(appErrors.ErrValidation, msg)
	}
	if err := s.validator.Struct(req); err != nil {
		return failure(appErrors.ErrValidation, msgInvalidReviewFields)
	}

	if _, err := s.professors.FindByID(ctx, professorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failure(appErrors.ErrNotFound, msgProfessorNotFound)
		}
		return persistenceFailure(err, "create")
	}
	subjectID := optionalID(req.SubjectID)
	if out, ok := s.checkSubject(ctx, professorID, subjectID); !ok {
		return out
	}

	review := &models.Review{
		ProfessorID: professorID,
		SubjectID:   subjectID,
		UserID:      actor.UserID,
		Content:     strings.TrimSpace(req.Content),
		Rating:      req.Rating,
		Period:      req.Period,
		Anonymous:   req.Anonymous,
	}

	approved, err := s.moderator.Approve(ctx, review.Content)
	if err != nil {
		return ReviewOutcome{Message: msgModerationDown, Err: moderationError(err)}
	}
	if !approved {
		return failure(appErrors.ErrModerationRejected, msgReviewRejected)
	}
	review.Approved = true

	err = s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.ensureCanSubmit(ctx, exec, actor.UserID); err != nil {
			return err
		}
		if _, err := s.professors.LockByID(ctx, exec, professorID); err != nil {
			return err
		}
		if err := s.lockSubjects(ctx, exec, subjectIDs(review.SubjectID)); err != nil {
			return err
		}
		if err := s.reviews.Create(ctx, exec, review); err != nil {
			return err
		}
		return s.aggregator.Recompute(ctx, exec, professorID, subjectIDs(review.SubjectID)...)
	})
	if err != nil {
		if out, ok := deniedOutcome(err); ok {
			return out
		}
		if errors.Is(err, sql.ErrNoRows) {
			return failure(appErrors.ErrNotFound, msgProfessorNotFound)
		}
		return persistenceFailure(err, "create")
	}

	return ReviewOutcome{Success: true, Review: review, ProfessorID: professorID, Message: msgReviewPublished}
}

// Edit applies the non-nil fields of req to a review owned by actor (or any review for administrators).
// Changed content is moderated again; only administrators may skip that with req.ReModerate set to false.
func (s *ReviewService) Edit(ctx context.Context, reviewID string, actor Actor, req dto.UpdateReviewRequest) ReviewOutcome {
	outcome := s.edit(ctx, reviewID, actor, req)
	s.finish(ctx, "edit", outcome)
	return outcome
}

func (s *ReviewService) edit(ctx context.Context, reviewID string, actor Actor, req dto.UpdateReviewRequest) ReviewOutcome {
	current, out, ok := s.authorize(ctx, reviewID, actor, msgEditForbidden)
	if !ok {
		return out
	}
	if !actor.IsAdmin {
		if out, ok := s.precheckSubmit(ctx, actor.UserID); !ok {
			return out
		}
	}
	if req.Empty() {
		return failure(appErrors.ErrValidation, msgNothingToUpdate)
	}
	if err := s.validator.Struct(req); err != nil {
		return failure(appErrors.ErrValidation, msgInvalidReviewFields)
	}

	updated := *current
	contentChanged := applyReviewChanges(&updated, req)
	if ok, msg := s.Validate(updated.Content, updated.Rating); !ok {
		return failure(appErrors.ErrValidation, msg)
	}
	if req.SubjectID != nil {
		if out, ok := s.checkSubject(ctx, updated.ProfessorID, updated.SubjectID); !ok {
			return out
		}
	}

	reModerate := req.ReModerate == nil || *req.ReModerate || !actor.IsAdmin
	if contentChanged && reModerate {
		approved, err := s.moderator.Approve(ctx, updated.Content)
		if err != nil {
			return ReviewOutcome{Message: msgModerationDown, Err: moderationError(err)}
		}
		if !approved {
			return failure(appErrors.ErrModerationRejected, msgEditRejected)
		}
	}

	var saved *models.Review
	err := s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if !actor.IsAdmin {
			if err := s.ensureCanSubmit(ctx, exec, actor.UserID); err != nil {
				return err
			}
		}
		if _, err := s.professors.LockByID(ctx, exec, current.ProfessorID); err != nil {
			return err
		}
		locked, err := s.reviews.LockByID(ctx, exec, reviewID)
		if err != nil {
			return err
		}
		touched := append(subjectIDs(locked.SubjectID), subjectIDs(updated.SubjectID)...)
		if err := s.lockSubjects(ctx, exec, touched); err != nil {
			return err
		}
		next := *locked
		applyReviewChanges(&next, req)
		if contentChanged && reModerate {
			next.Approved = true
		}
		if err := s.reviews.Update(ctx, exec, &next); err != nil {
			return err
		}
		saved = &next
		return s.aggregator.Recompute(ctx, exec, next.ProfessorID, touched...)
	})
	if err != nil {
		if out, ok := deniedOutcome(err); ok {
			return out
		}
		if errors.Is(err, sql.ErrNoRows) {
			return failure(appErrors.ErrNotFound, msgReviewNotFound)
		}
		return persistenceFailure(err, "update")
	}

	return ReviewOutcome{Success: true, Review: saved, ProfessorID: saved.ProfessorID, Message: msgReviewUpdated}
}

// Delete removes a review owned by actor (or any review for administrators).
// The outcome carries the professor whose aggregate was refreshed.
func (s *ReviewService) Delete(ctx context.Context, reviewID string, actor Actor) ReviewOutcome {
	outcome := s.delete(ctx, reviewID, actor)
	s.finish(ctx, "delete", outcome)
	return outcome
}

func (s *ReviewService) delete(ctx context.Context, reviewID string, actor Actor) ReviewOutcome {
	current, out, ok := s.authorize(ctx, reviewID, actor, msgDeleteForbidden)
	if !ok {
		return out
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if _, err := s.professors.LockByID(ctx, exec, current.ProfessorID); err != nil {
			return err
		}
		locked, err := s.reviews.LockByID(ctx, exec, reviewID)
		if err != nil {
			return err
		}
		if err := s.lockSubjects(ctx, exec, subjectIDs(locked.SubjectID)); err != nil {
			return err
		}
		if err := s.reviews.Delete(ctx, exec, reviewID); err != nil {
			return err
		}
		return s.aggregator.Recompute(ctx, exec, locked.ProfessorID, subjectIDs(locked.SubjectID)...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failure(appErrors.ErrNotFound, msgReviewNotFound)
		}
		return persistenceFailure(err, "delete")
	}

	return ReviewOutcome{Success: true, ProfessorID: current.ProfessorID, Message: msgReviewDeleted}
}

func (s *ReviewService) authorize(ctx context.Context, reviewID string, actor Actor, forbidden string) (*models.Review, ReviewOutcome, bool) {
	current, err := s.reviews.FindByID(ctx, nil, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, failure(appErrors.ErrNotFound, msgReviewNotFound), false
		}
		return nil, persistenceFailure(err, "load"), false
	}
	if !current.IsAuthor(actor.UserID) && !actor.IsAdmin {
		return nil, failure(appErrors.ErrForbidden, forbidden), false
	}
	return current, ReviewOutcome{}, true
}

func (s *ReviewService) checkSubject(ctx context.Context, professorID string, subjectID *string) (ReviewOutcome, bool) {
	if subjectID == nil {
		return ReviewOutcome{}, true
	}
	linked, err := s.professors.SubjectsFor(ctx, []string{professorID})
	if err != nil {
		return persistenceFailure(err, "check"), false
	}
	for _, subject := range linked[professorID] {
		if subject.ID == *subjectID {
			return ReviewOutcome{}, true
		}
	}
	return failure(appErrors.ErrValidation, msgSubjectNotTaught), false
}

// precheckSubmit rejects suspended accounts before moderation runs.
func (s *ReviewService) precheckSubmit(ctx context.Context, userID string) (ReviewOutcome, bool) {
	if err := s.ensureCanSubmit(ctx, nil, userID); err != nil {
		if out, ok := deniedOutcome(err); ok {
			return out, false
		}
		appErr := appErrors.FromError(err)
		return ReviewOutcome{Message: appErr.Message, Err: appErr}, false
	}
	return ReviewOutcome{}, true
}

// ensureCanSubmit checks the access policy on exec. Inside a write transaction the
// profile row is share locked, so a concurrent suspension waits for the write to finish.
func (s *ReviewService) ensureCanSubmit(ctx context.Context, exec sqlx.ExtContext, userID string) error {
	allowed, reason, err := s.policy.CanSubmit(ctx, exec, userID)
	if err != nil {
		return err
	}
	if !allowed {
		return &submissionDeniedError{reason: reason}
	}
	return nil
}

func (s *ReviewService) lockSubjects(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	for _, id := range distinctIDs(ids) {
		if _, err := s.subjects.LockByID(ctx, exec, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *ReviewService) finish(ctx context.Context, operation string, outcome ReviewOutcome) {
	code := "ok"
	if !outcome.Success {
		code = outcome.Err.Code
		if outcome.Err.Status >= 500 {
			s.logger.Error("review operation failed", zap.String("operation", operation), zap.String("code", code), zap.Error(outcome.Err))
		}
	} else {
		if s.cache != nil {
			s.cache.InvalidateProfessors(ctx)
		}
		s.logger.Info("review operation", zap.String("operation", operation), zap.String("professor_id", outcome.ProfessorID))
	}
	s.metrics.RecordReviewOutcome(operation, code)
}

// applyReviewChanges copies the present fields of req into review and reports whether the content changed.
func applyReviewChanges(review *models.Review, req dto.UpdateReviewRequest) bool {
	changed := false
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		changed = content != review.Content
		review.Content = content
	}
	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Period != nil {
		review.Period = *req.Period
	}
	if req.SubjectID != nil {
		review.SubjectID = optionalID(req.SubjectID)
	}
	if req.Anonymous != nil {
		review.Anonymous = *req.Anonymous
	}
	return changed
}

func moderationError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code == appErrors.ErrModerationUnavailable.Code {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrModerationUnavailable.Code, appErrors.ErrModerationUnavailable.Status, appErrors.ErrModerationUnavailable.Message)
}

func subjectIDs(id *string) []string {
	if id == nil || *id == "" {
		return nil
	}
	return []string{*id}
}

func optionalID(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
