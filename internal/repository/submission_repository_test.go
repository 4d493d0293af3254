package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confero-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func submissionRows(id string, status models.SubmissionStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "event_id", "owner_id", "title", "abstract", "keywords", "corresponding_author", "co_authors",
		"pdf_url", "pdf_filename", "pdf_size_bytes", "status", "submitted_at", "created_at", "updated_at"}).
		AddRow(id, "ev1", "u1", "A Paper", "Abstract", "go", "Alex Doe", nil,
			nil, nil, nil, status, nil, time.Now(), time.Now())
}

func TestSubmissionRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{EventID: "ev1", OwnerID: "u1", Title: "A Paper", Status: models.StatusDraft}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, owner_id")).
		WithArgs(submission.ID).
		WillReturnRows(submissionRows(submission.ID, models.StatusDraft))

	found, err := repo.FindByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, submission.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, owner_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, owner_id")).
		WithArgs("ev1", "u1", string(models.StatusSubmitted)).
		WillReturnRows(submissionRows("s1", models.StatusSubmitted))

	list, err := repo.List(context.Background(), models.SubmissionFilter{EventID: "ev1", OwnerID: "u1", Status: models.StatusSubmitted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryTransitionStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WithArgs(string(models.StatusSubmitted), sqlmock.AnyArg(), sqlmock.AnyArg(), "s1", string(models.StatusDraft)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.TransitionStatus(context.Background(), "s1", models.StatusDraft, models.StatusSubmitted, &now)
	require.NoError(t, err)
	require.True(t, applied)

	// Zero affected rows means the compare-and-set lost to a concurrent
	// writer; no error, just a false result.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WithArgs(string(models.StatusUnderReview), sqlmock.AnyArg(), sqlmock.AnyArg(), "s1", string(models.StatusSubmitted)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = repo.TransitionStatus(context.Background(), "s1", models.StatusSubmitted, models.StatusUnderReview, nil)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryDeleteWhileEditable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1 AND status IN ($2, $3)")).
		WithArgs("s1", string(models.StatusDraft), string(models.StatusSubmitted)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteWhileEditable(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1 AND status IN ($2, $3)")).
		WithArgs("s2", string(models.StatusDraft), string(models.StatusSubmitted)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteWhileEditable(context.Background(), "s2")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestSubmissionRepositorySetPDF(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET pdf_url = $1")).
		WithArgs("papers/s1.pdf", "paper.pdf", int64(2048), sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPDF(context.Background(), "s1", "papers/s1.pdf", "paper.pdf", 2048))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET pdf_url = $1")).
		WithArgs("papers/s2.pdf", "paper.pdf", int64(2048), sqlmock.AnyArg(), "s2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.SetPDF(context.Background(), "s2", "papers/s2.pdf", "paper.pdf", 2048), sql.ErrNoRows)
}

func TestSubmissionRepositoryHardDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.HardDelete(context.Background(), "ghost"), sql.ErrNoRows)
}
