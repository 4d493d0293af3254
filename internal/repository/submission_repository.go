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

const submissionColumns = `id, event_id, owner_id, title, abstract, keywords, corresponding_author, co_authors,
		pdf_url, pdf_filename, pdf_size_bytes, status, submitted_at, created_at, updated_at`

// SubmissionRepository persists submission records; it is the single source of
// truth for lifecycle state.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, event_id, owner_id, title, abstract, keywords, corresponding_author, co_authors,
			pdf_url, pdf_filename, pdf_size_bytes, status, submitted_at, created_at, updated_at)
		VALUES (:id, :event_id, :owner_id, :title, :abstract, :keywords, :corresponding_author, :co_authors,
			:pdf_url, :pdf_filename, :pdf_size_bytes, :status, :submitted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns the submission with the given id.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE 1=1`, submissionColumns)
	var args []interface{}
	if filter.EventID != "" {
		query += fmt.Sprintf(" AND event_id = $%d", len(args)+1)
		args = append(args, filter.EventID)
	}
	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", len(args)+1)
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC"
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateContent updates the author-editable fields of a submission.
func (r *SubmissionRepository) UpdateContent(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions
		SET title = :title, abstract = :abstract, keywords = :keywords, corresponding_author = :corresponding_author,
			co_authors = :co_authors, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated submission rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPDF attaches a paper file reference to a submission.
func (r *SubmissionRepository) SetPDF(ctx context.Context, id, url, filename string, sizeBytes int64) error {
	const query = `UPDATE submissions SET pdf_url = $1, pdf_filename = $2, pdf_size_bytes = $3, updated_at = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, url, filename, sizeBytes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set submission pdf: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check pdf update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionStatus moves a submission between statuses with compare-and-set
// semantics: the update is conditioned on the expected current status, so a
// concurrent transition loses cleanly instead of overwriting. Returns false
// when the precondition did not hold.
func (r *SubmissionRepository) TransitionStatus(ctx context.Context, id string, from, to models.SubmissionStatus, submittedAt *time.Time) (bool, error) {
	const query = `UPDATE submissions
		SET status = $1, submitted_at = COALESCE($2, submitted_at), updated_at = $3
		WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, to, submittedAt, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("transition submission status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check transition rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteWhileEditable removes a submission only while its status still allows
// author deletion. Returns false when the status guard rejected the delete.
func (r *SubmissionRepository) DeleteWhileEditable(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM submissions WHERE id = $1 AND status IN ($2, $3)`
	result, err := r.db.ExecContext(ctx, query, id, models.StatusDraft, models.StatusSubmitted)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deleted submission rows: %w", err)
	}
	return affected > 0, nil
}

// HardDelete removes a submission regardless of status. Reserved for the
// audited admin path.
func (r *SubmissionRepository) HardDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("hard delete submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check hard deleted rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
