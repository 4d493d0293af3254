package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

const reviewColumns = `id, submission_id, reviewer_id, originality_score, methodology_score, clarity_score, contribution_score,
		overall_score, strengths, weaknesses, comments_to_authors, comments_to_committee, recommendation, is_completed,
		created_at, updated_at`

// ReviewRepository persists one review per (submission, reviewer) pair.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindBySubmissionAndReviewer returns the review for the pair, if any.
func (r *ReviewRepository) FindBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE submission_id = $1 AND reviewer_id = $2`, reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, submissionID, reviewerID); err != nil {
		return nil, err
	}
	return &review, nil
}

// ListBySubmission returns all reviews attached to a submission.
func (r *ReviewRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE submission_id = $1 ORDER BY created_at ASC`, reviewColumns)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, submissionID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// ListCompletedBySubmission returns only completed reviews for aggregation.
func (r *ReviewRepository) ListCompletedBySubmission(ctx context.Context, submissionID string) ([]models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE submission_id = $1 AND is_completed = TRUE ORDER BY created_at ASC`, reviewColumns)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, submissionID); err != nil {
		return nil, fmt.Errorf("list completed reviews: %w", err)
	}
	return reviews, nil
}

// UpsertWithAssignment saves a review and mirrors the sibling assignment's
// status in the same transaction, so the mirror can never be observed out of
// sync with review state. Returns ErrLocked when the stored review is
// already completed.
func (r *ReviewRepository) UpsertWithAssignment(ctx context.Context, review *models.Review, assignmentStatus models.AssignmentStatus) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review upsert: %w", err)
	}

	const upsert = `INSERT INTO reviews (id, submission_id, reviewer_id, originality_score, methodology_score, clarity_score,
			contribution_score, overall_score, strengths, weaknesses, comments_to_authors, comments_to_committee,
			recommendation, is_completed, created_at, updated_at)
		VALUES (:id, :submission_id, :reviewer_id, :originality_score, :methodology_score, :clarity_score,
			:contribution_score, :overall_score, :strengths, :weaknesses, :comments_to_authors, :comments_to_committee,
			:recommendation, :is_completed, :created_at, :updated_at)
		ON CONFLICT (submission_id, reviewer_id)
		DO UPDATE SET originality_score = EXCLUDED.originality_score, methodology_score = EXCLUDED.methodology_score,
			clarity_score = EXCLUDED.clarity_score, contribution_score = EXCLUDED.contribution_score,
			overall_score = EXCLUDED.overall_score, strengths = EXCLUDED.strengths, weaknesses = EXCLUDED.weaknesses,
			comments_to_authors = EXCLUDED.comments_to_authors, comments_to_committee = EXCLUDED.comments_to_committee,
			recommendation = EXCLUDED.recommendation, is_completed = EXCLUDED.is_completed, updated_at = EXCLUDED.updated_at
		WHERE reviews.is_completed = FALSE`
	result, err := tx.NamedExecContext(ctx, upsert, review)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("upsert review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check review upsert: %w", err)
	}
	// The conflict target guards completed rows: when the stored review is
	// already completed the statement touches nothing, so a racing second
	// completion loses here instead of overwriting the stored payload.
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return appErrors.ErrLocked
	}

	const mirror = `UPDATE assignments SET status = $1 WHERE submission_id = $2 AND reviewer_id = $3`
	if _, err := tx.ExecContext(ctx, mirror, assignmentStatus, review.SubmissionID, review.ReviewerID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("mirror assignment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review upsert: %w", err)
	}
	return nil
}

// DeleteWithAssignmentReset removes a review and resets the sibling
// assignment to pending in the same transaction. This is the first half of
// the explicit two-step admin reversal of a completed assignment.
func (r *ReviewRepository) DeleteWithAssignmentReset(ctx context.Context, submissionID, reviewerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE submission_id = $1 AND reviewer_id = $2`, submissionID, reviewerID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete review: %w", err)
	}

	const mirror = `UPDATE assignments SET status = $1 WHERE submission_id = $2 AND reviewer_id = $3`
	if _, err := tx.ExecContext(ctx, mirror, models.AssignmentPending, submissionID, reviewerID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("reset assignment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review delete: %w", err)
	}
	return nil
}
