package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type reviewRepo interface {
	FindBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*models.Review, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error)
	UpsertWithAssignment(ctx context.Context, review *models.Review, assignmentStatus models.AssignmentStatus) error
}

type assignmentReader interface {
	FindBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*models.Assignment, error)
}

type reviewSubmissionReader interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
}

// SubmitReviewRequest carries a reviewer's partial or final evaluation.
// Criterion scores are optional while drafting; completing a review
// requires a recommendation.
type SubmitReviewRequest struct {
	OriginalityScore    *int                         `json:"originality_score" validate:"omitempty,min=1,max=5"`
	MethodologyScore    *int                         `json:"methodology_score" validate:"omitempty,min=1,max=5"`
	ClarityScore        *int                         `json:"clarity_score" validate:"omitempty,min=1,max=5"`
	ContributionScore   *int                         `json:"contribution_score" validate:"omitempty,min=1,max=5"`
	Strengths           *string                      `json:"strengths"`
	Weaknesses          *string                      `json:"weaknesses"`
	CommentsToAuthors   *string                      `json:"comments_to_authors"`
	CommentsToCommittee *string                      `json:"comments_to_committee"`
	Recommendation      *models.ReviewRecommendation `json:"recommendation"`
	Complete            bool                         `json:"complete"`
}

// ReviewService handles reviewer evaluations. Saving a review mirrors the
// assignment status in the same transaction and invalidates the cached
// aggregate for the submission.
type ReviewService struct {
	reviews     reviewRepo
	assignments assignmentReader
	submissions reviewSubmissionReader
	cache       aggregateCache
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(reviews reviewRepo, assignments assignmentReader, submissions reviewSubmissionReader, cache aggregateCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		reviews:     reviews,
		assignments: assignments,
		submissions: submissions,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// SubmitReview saves the actor's review of a submission. The actor must hold
// an assignment for the pair, the submission must be in an active round
// (submitted or under review), and a completed review is locked against
// further writes.
func (s *ReviewService) SubmitReview(ctx context.Context, actor models.Actor, submissionID string, req SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	for _, score := range []*int{req.OriginalityScore, req.MethodologyScore, req.ClarityScore, req.ContributionScore} {
		if score != nil && (*score < 1 || *score > 5) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "criterion scores must be between 1 and 5")
		}
	}
	if req.Recommendation != nil && !req.Recommendation.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recommendation must be accept or reject")
	}
	if req.Complete && req.Recommendation == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a completed review requires a recommendation")
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
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("submission is not accepting reviews (status %s)", submission.Status))
	}

	if _, err := s.assignments.FindBySubmissionAndReviewer(ctx, submissionID, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no review assignment for this submission")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	existing, err := s.reviews.FindBySubmissionAndReviewer(ctx, submissionID, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if existing != nil && existing.IsCompleted {
		return nil, appErrors.Clone(appErrors.ErrLocked, "review is already completed")
	}

	review := &models.Review{
		SubmissionID:        submissionID,
		ReviewerID:          actor.ID,
		OriginalityScore:    req.OriginalityScore,
		MethodologyScore:    req.MethodologyScore,
		ClarityScore:        req.ClarityScore,
		ContributionScore:   req.ContributionScore,
		Strengths:           req.Strengths,
		Weaknesses:          req.Weaknesses,
		CommentsToAuthors:   req.CommentsToAuthors,
		CommentsToCommittee: req.CommentsToCommittee,
		Recommendation:      req.Recommendation,
		IsCompleted:         req.Complete,
	}
	if existing != nil {
		review.ID = existing.ID
		review.CreatedAt = existing.CreatedAt
	}
	review.OverallScore = review.ComputeOverall()

	mirror := models.AssignmentInProgress
	if req.Complete {
		mirror = models.AssignmentCompleted
	}
	if err := s.reviews.UpsertWithAssignment(ctx, review, mirror); err != nil {
		// A concurrent completion can land between the read above and this
		// write; the repository refuses the update and the first completion
		// keeps its payload.
		if errors.Is(err, appErrors.ErrLocked) {
			return nil, appErrors.Clone(appErrors.ErrLocked, "review is already completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save review")
	}
	s.metrics.ObserveReviewSave(req.Complete)

	if err := s.cache.Delete(ctx, AggregateCacheKey(submissionID)); err != nil {
		s.logger.Warn("failed to invalidate aggregate cache", zap.String("submission_id", submissionID), zap.Error(err))
	}
	return review, nil
}

// GetMyReview returns the actor's review of a submission, if any.
func (s *ReviewService) GetMyReview(ctx context.Context, actor models.Actor, submissionID string) (*models.Review, error) {
	review, err := s.reviews.FindBySubmissionAndReviewer(ctx, submissionID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// ListBySubmission returns every review on a submission. Admin only; the
// committee sees reviews, authors see only the decision outcome.
func (s *ReviewService) ListBySubmission(ctx context.Context, actor models.Actor, submissionID string) ([]models.Review, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	reviews, err := s.reviews.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}
