package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type submissionRepo interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	UpdateContent(ctx context.Context, submission *models.Submission) error
	SetPDF(ctx context.Context, id, url, filename string, sizeBytes int64) error
	TransitionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, submittedAt *time.Time) (bool, error)
	DeleteWhileEditable(ctx context.Context, id string) (bool, error)
	HardDelete(ctx context.Context, id string) error
}

type completedReviewReader interface {
	ListCompletedBySubmission(ctx context.Context, submissionID string) ([]models.Review, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error)
}

type assignmentCounter interface {
	CountBySubmission(ctx context.Context, submissionID string) (int, error)
}

type aggregateCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type decisionNotifier interface {
	NotifyDecision(ctx context.Context, submission *models.Submission, decision models.Decision, comments string) error
}

// CreateSubmissionRequest is the author payload for a new submission.
type CreateSubmissionRequest struct {
	EventID             string  `json:"event_id" validate:"required"`
	Title               string  `json:"title" validate:"required"`
	Abstract            string  `json:"abstract"`
	Keywords            string  `json:"keywords"`
	CorrespondingAuthor string  `json:"corresponding_author"`
	CoAuthors           *string `json:"co_authors"`
}

// UpdateSubmissionRequest carries the author-editable fields.
type UpdateSubmissionRequest struct {
	Title               string  `json:"title" validate:"required"`
	Abstract            string  `json:"abstract"`
	Keywords            string  `json:"keywords"`
	CorrespondingAuthor string  `json:"corresponding_author"`
	CoAuthors           *string `json:"co_authors"`
}

// DecideRequest is the admin verdict payload.
type DecideRequest struct {
	Decision models.Decision `json:"decision" validate:"required,oneof=accept reject revise"`
	Comments string          `json:"comments"`
}

// AggregateCacheKey builds the cache key for a submission's aggregate outcome.
func AggregateCacheKey(submissionID string) string {
	return "aggregate:submission:" + submissionID
}

// LifecycleService enforces the submission status state machine and computes
// review aggregates. Every operation takes the authenticated Actor; role and
// ownership checks are pure predicates over that value.
type LifecycleService struct {
	submissions submissionRepo
	reviews     completedReviewReader
	assignments assignmentCounter
	cache       aggregateCache
	audit       auditWriter
	notifier    decisionNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewLifecycleService constructs LifecycleService.
func NewLifecycleService(submissions submissionRepo, reviews completedReviewReader, assignments assignmentCounter, cache aggregateCache, audit auditWriter, notifier decisionNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &LifecycleService{
		submissions: submissions,
		reviews:     reviews,
		assignments: assignments,
		cache:       cache,
		audit:       audit,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new draft submission owned by the actor.
func (s *LifecycleService) Create(ctx context.Context, actor models.Actor, req CreateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	submission := &models.Submission{
		EventID:             req.EventID,
		OwnerID:             actor.ID,
		Title:               strings.TrimSpace(req.Title),
		Abstract:            strings.TrimSpace(req.Abstract),
		Keywords:            strings.TrimSpace(req.Keywords),
		CorrespondingAuthor: strings.TrimSpace(req.CorrespondingAuthor),
		CoAuthors:           req.CoAuthors,
		Status:              models.StatusDraft,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// Get returns a submission visible to the actor (owner or admin).
func (s *LifecycleService) Get(ctx context.Context, actor models.Actor, id string) (*models.Submission, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the submission owner")
	}
	return submission, nil
}

// List returns submissions matching the filter. Non-admin actors only ever
// see their own.
func (s *LifecycleService) List(ctx context.Context, actor models.Actor, filter models.SubmissionFilter) ([]models.Submission, error) {
	if !actor.IsAdmin() {
		filter.OwnerID = actor.ID
	}
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Update edits the author-facing fields while the submission is still
// editable (draft or submitted).
func (s *LifecycleService) Update(ctx context.Context, actor models.Actor, id string, req UpdateSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.OwnerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the submission owner")
	}
	if submission.Status != models.StatusDraft && submission.Status != models.StatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submission is no longer editable")
	}
	submission.Title = strings.TrimSpace(req.Title)
	submission.Abstract = strings.TrimSpace(req.Abstract)
	submission.Keywords = strings.TrimSpace(req.Keywords)
	submission.CorrespondingAuthor = strings.TrimSpace(req.CorrespondingAuthor)
	submission.CoAuthors = req.CoAuthors
	if err := s.submissions.UpdateContent(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	return submission, nil
}

// AttachPDF stamps the paper file reference onto an editable submission.
func (s *LifecycleService) AttachPDF(ctx context.Context, actor models.Actor, id, url, filename string, sizeBytes int64) (*models.Submission, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.OwnerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the submission owner")
	}
	switch submission.Status {
	case models.StatusDraft, models.StatusSubmitted, models.StatusRevisionRequested:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submission is no longer editable")
	}
	if err := s.submissions.SetPDF(ctx, id, url, filename, sizeBytes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach pdf")
	}
	submission.PDFURL = &url
	submission.PDFFilename = &filename
	submission.PDFSizeBytes = &sizeBytes
	return submission, nil
}

// Submit moves an owner's draft to submitted, stamping submitted_at.
func (s *LifecycleService) Submit(ctx context.Context, actor models.Actor, id string) (*models.Submission, error) {
	return s.authorTransition(ctx, actor, id, models.StatusDraft, models.StatusSubmitted)
}

// Resubmit returns a revision_requested submission to submitted. Prior
// reviews are retained; a fresh review round requires new assignments.
func (s *LifecycleService) Resubmit(ctx context.Context, actor models.Actor, id string) (*models.Submission, error) {
	return s.authorTransition(ctx, actor, id, models.StatusRevisionRequested, models.StatusSubmitted)
}

func (s *LifecycleService) authorTransition(ctx context.Context, actor models.Actor, id string, from, to models.SubmissionStatus) (*models.Submission, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.OwnerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the submission owner")
	}
	if submission.Status != from || !models.CanTransition(from, to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot submit from status %s", submission.Status))
	}
	if err := validateForSubmit(submission); err != nil {
		return nil, err
	}
	submittedAt := s.now()
	applied, err := s.submissions.TransitionStatus(ctx, id, from, to, &submittedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submission status changed concurrently")
	}
	s.metrics.ObserveTransition(string(from), string(to))
	submission.Status = to
	submission.SubmittedAt = &submittedAt
	return submission, nil
}

// StartReview moves a submitted submission to under_review. Admin only.
func (s *LifecycleService) StartReview(ctx context.Context, actor models.Actor, id string) (*models.Submission, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(submission.Status, models.StatusUnderReview) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot start review from status %s", submission.Status))
	}
	applied, err := s.submissions.TransitionStatus(ctx, id, models.StatusSubmitted, models.StatusUnderReview, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submission status changed concurrently")
	}
	s.metrics.ObserveTransition(string(models.StatusSubmitted), string(models.StatusUnderReview))
	submission.Status = models.StatusUnderReview
	return submission, nil
}

// Decide applies an admin verdict to a submission under review. Terminal
// decisions trigger the notifier after the transition commits; a notifier
// failure is reported but never rolls the decision back. Revise transitions
// without a notification.
func (s *LifecycleService) Decide(ctx context.Context, actor models.Actor, id string, req DecideRequest) (*models.Submission, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	target, ok := req.Decision.TargetStatus()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown decision")
	}
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(submission.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot decide from status %s", submission.Status))
	}
	applied, err := s.submissions.TransitionStatus(ctx, id, models.StatusUnderReview, target, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply decision")
	}
	if !applied {
		// A concurrent decision won the compare-and-set; this caller must
		// reload and reconsider rather than overwrite.
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submission status changed concurrently")
	}
	s.metrics.ObserveTransition(string(models.StatusUnderReview), string(target))
	submission.Status = target

	s.recordDecisionAudit(ctx, actor, submission, req)

	if target.IsTerminal() {
		if err := s.notifier.NotifyDecision(ctx, submission, req.Decision, req.Comments); err != nil {
			s.logger.Warn("decision notification failed",
				zap.String("submission_id", submission.ID),
				zap.String("decision", string(req.Decision)),
				zap.Error(err),
			)
			return submission, appErrors.FromError(err)
		}
	}
	return submission, nil
}

// ComputeAggregate derives the review roll-up for a submission. The result
// is cached; every review or assignment write invalidates the entry.
func (s *LifecycleService) ComputeAggregate(ctx context.Context, submissionID string) (*models.AggregateOutcome, error) {
	key := AggregateCacheKey(submissionID)
	var cached models.AggregateOutcome
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	}
	s.metrics.RecordCacheOperation(false)

	if _, err := s.load(ctx, submissionID); err != nil {
		return nil, err
	}
	completed, err := s.reviews.ListCompletedBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed reviews")
	}
	total, err := s.assignments.CountBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}

	outcome := aggregateReviews(submissionID, completed, total)
	if err := s.cache.Set(ctx, key, outcome, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache aggregate", zap.String("submission_id", submissionID), zap.Error(err))
	}
	return outcome, nil
}

// Delete removes a submission. Owners may delete only while the submission
// is in draft or submitted; admins hard-delete any status, audited.
func (s *LifecycleService) Delete(ctx context.Context, actor models.Actor, id string) error {
	submission, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if submission.OwnerID != actor.ID && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "not the submission owner")
	}

	if submission.OwnerID == actor.ID && !actor.IsAdmin() {
		deleted, err := s.submissions.DeleteWhileEditable(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
		}
		if !deleted {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "submission can no longer be deleted")
		}
		return nil
	}

	if err := s.submissions.HardDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
	}
	values, _ := json.Marshal(map[string]string{"status": string(submission.Status), "title": submission.Title})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionHardDelete,
		Resource:   "submission",
		ResourceID: &id,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record hard delete audit log", zap.Error(err))
	}
	return nil
}

func (s *LifecycleService) load(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

func (s *LifecycleService) recordDecisionAudit(ctx context.Context, actor models.Actor, submission *models.Submission, req DecideRequest) {
	values, _ := json.Marshal(map[string]string{"decision": string(req.Decision), "comments": req.Comments})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionDecision,
		Resource:   "submission",
		ResourceID: &submission.ID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record decision audit log", zap.Error(err))
	}
}

func validateForSubmit(submission *models.Submission) error {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(submission.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(submission.Abstract) == "" {
		missing = append(missing, "abstract")
	}
	if strings.TrimSpace(submission.Keywords) == "" {
		missing = append(missing, "keywords")
	}
	if strings.TrimSpace(submission.CorrespondingAuthor) == "" {
		missing = append(missing, "corresponding_author")
	}
	if !submission.HasPDF() {
		missing = append(missing, "pdf")
	}
	if len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "submission incomplete: "+strings.Join(missing, ", "))
	}
	return nil
}

func aggregateReviews(submissionID string, completed []models.Review, totalAssigned int) *models.AggregateOutcome {
	outcome := &models.AggregateOutcome{
		SubmissionID:         submissionID,
		CompletedReviewCount: len(completed),
		TotalAssignedCount:   totalAssigned,
	}
	sum := 0.0
	scored := 0
	for _, review := range completed {
		if overall := review.ComputeOverall(); overall != nil {
			sum += *overall
			scored++
		}
		if review.Recommendation != nil {
			switch *review.Recommendation {
			case models.RecommendAccept:
				outcome.AcceptCount++
			case models.RecommendReject:
				outcome.RejectCount++
			}
		}
	}
	if scored > 0 {
		mean := sum / float64(scored)
		outcome.MeanScore = &mean
	}
	return outcome
}
