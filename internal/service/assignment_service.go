package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type assignmentRepo interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Exists(ctx context.Context, submissionID, reviewerID string) (bool, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]models.Assignment, error)
	ListByReviewer(ctx context.Context, reviewerID string) ([]models.AssignmentDetail, error)
	DeleteIfNotCompleted(ctx context.Context, id string) (bool, error)
}

type assignmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type assignmentSubmissionReader interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

type reviewResetter interface {
	DeleteWithAssignmentReset(ctx context.Context, submissionID, reviewerID string) error
}

// AssignReviewerRequest binds a reviewer to a submission.
type AssignReviewerRequest struct {
	ReviewerID string     `json:"reviewer_id" validate:"required"`
	DueDate    *time.Time `json:"due_date"`
}

// AssignmentService manages reviewer assignments. All mutations are admin
// operations; reviewers only read their own worklist.
type AssignmentService struct {
	assignments assignmentRepo
	users       assignmentUserReader
	submissions assignmentSubmissionReader
	reviews     reviewResetter
	cache       aggregateCache
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentRepo, users assignmentUserReader, submissions assignmentSubmissionReader, reviews reviewResetter, cache aggregateCache, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		users:       users,
		submissions: submissions,
		reviews:     reviews,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Assign binds a reviewer to a submission. The reviewer must hold the
// reviewer role and the pair must not already be assigned.
func (s *AssignmentService) Assign(ctx context.Context, actor models.Actor, submissionID string, req AssignReviewerRequest) (*models.Assignment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	submission, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	switch submission.Status {
	case models.StatusSubmitted, models.StatusUnderReview:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot assign reviewers in status %s", submission.Status))
	}
	if submission.OwnerID == req.ReviewerID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "authors cannot review their own submission")
	}

	reviewer, err := s.users.FindByID(ctx, req.ReviewerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reviewer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewer")
	}
	if !reviewer.HasRole(models.RoleReviewer) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user does not hold the reviewer role")
	}

	exists, err := s.assignments.Exists(ctx, submissionID, req.ReviewerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "reviewer is already assigned to this submission")
	}

	assignment := &models.Assignment{
		SubmissionID: submissionID,
		ReviewerID:   req.ReviewerID,
		AssignedBy:   actor.ID,
		DueDate:      req.DueDate,
		Status:       models.AssignmentPending,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.invalidateAggregate(ctx, submissionID)
	return assignment, nil
}

// Remove deletes an assignment. An assignment whose review is completed
// cannot be removed directly; the review must be deleted first.
func (s *AssignmentService) Remove(ctx context.Context, actor models.Actor, assignmentID string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	deleted, err := s.assignments.DeleteIfNotCompleted(ctx, assignmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "assignment has a completed review; delete the review first")
	}

	s.invalidateAggregate(ctx, assignment.SubmissionID)
	return nil
}

// RemoveReview deletes a reviewer's review and resets the assignment to
// pending. This is the explicit first step for reversing a completed
// assignment.
func (s *AssignmentService) RemoveReview(ctx context.Context, actor models.Actor, submissionID, reviewerID string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if err := s.reviews.DeleteWithAssignmentReset(ctx, submissionID, reviewerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	s.invalidateAggregate(ctx, submissionID)
	return nil
}

// ListBySubmission returns a submission's assignments. Admin only.
func (s *AssignmentService) ListBySubmission(ctx context.Context, actor models.Actor, submissionID string) ([]models.Assignment, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	assignments, err := s.assignments.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListMine returns the actor's reviewer worklist.
func (s *AssignmentService) ListMine(ctx context.Context, actor models.Actor) ([]models.AssignmentDetail, error) {
	assignments, err := s.assignments.ListByReviewer(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviewer assignments")
	}
	return assignments, nil
}

func (s *AssignmentService) invalidateAggregate(ctx context.Context, submissionID string) {
	if err := s.cache.Delete(ctx, AggregateCacheKey(submissionID)); err != nil {
		s.logger.Warn("failed to invalidate aggregate cache", zap.String("submission_id", submissionID), zap.Error(err))
	}
}
