package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/confero-api/internal/models"
)

// AssignmentRepository persists reviewer-to-submission assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment in pending status.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentPending
	}
	const query = `INSERT INTO assignments (id, submission_id, reviewer_id, assigned_by, assigned_at, due_date, status)
		VALUES (:id, :submission_id, :reviewer_id, :assigned_by, :assigned_at, :due_date, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns the assignment with the given id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, submission_id, reviewer_id, assigned_by, assigned_at, due_date, status
		FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindBySubmissionAndReviewer returns the assignment for the pair, if any.
func (r *AssignmentRepository) FindBySubmissionAndReviewer(ctx context.Context, submissionID, reviewerID string) (*models.Assignment, error) {
	const query = `SELECT id, submission_id, reviewer_id, assigned_by, assigned_at, due_date, status
		FROM assignments WHERE submission_id = $1 AND reviewer_id = $2`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, submissionID, reviewerID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Exists checks whether the (submission, reviewer) pair is already assigned.
func (r *AssignmentRepository) Exists(ctx context.Context, submissionID, reviewerID string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE submission_id = $1 AND reviewer_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, submissionID, reviewerID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return true, nil
}

// ListBySubmission returns all assignments for a submission.
func (r *AssignmentRepository) ListBySubmission(ctx context.Context, submissionID string) ([]models.Assignment, error) {
	const query = `SELECT id, submission_id, reviewer_id, assigned_by, assigned_at, due_date, status
		FROM assignments WHERE submission_id = $1 ORDER BY assigned_at ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, submissionID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ListByReviewer returns the reviewer's worklist enriched with submission context.
func (r *AssignmentRepository) ListByReviewer(ctx context.Context, reviewerID string) ([]models.AssignmentDetail, error) {
	const query = `
SELECT a.id, a.submission_id, a.reviewer_id, a.assigned_by, a.assigned_at, a.due_date, a.status,
       s.title AS submission_title, s.status AS submission_status
FROM assignments a
JOIN submissions s ON s.id = a.submission_id
WHERE a.reviewer_id = $1
ORDER BY a.assigned_at DESC`
	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, reviewerID); err != nil {
		return nil, fmt.Errorf("list reviewer assignments: %w", err)
	}
	return assignments, nil
}

// CountBySubmission returns the number of assignments against a submission.
func (r *AssignmentRepository) CountBySubmission(ctx context.Context, submissionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE submission_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, submissionID); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

// DeleteIfNotCompleted removes an assignment unless its review is already
// completed. Returns false when the status guard rejected the delete.
func (r *AssignmentRepository) DeleteIfNotCompleted(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM assignments WHERE id = $1 AND status <> $2`
	result, err := r.db.ExecContext(ctx, query, id, models.AssignmentCompleted)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deleted assignment rows: %w", err)
	}
	return affected > 0, nil
}
