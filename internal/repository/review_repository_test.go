package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

func TestReviewRepositoryUpsertWithAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET status = $1 WHERE submission_id = $2 AND reviewer_id = $3")).
		WithArgs(string(models.AssignmentCompleted), "s1", "rev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	accept := models.RecommendAccept
	review := &models.Review{
		SubmissionID:   "s1",
		ReviewerID:     "rev1",
		Recommendation: &accept,
		IsCompleted:    true,
	}
	require.NoError(t, repo.UpsertWithAssignment(context.Background(), review, models.AssignmentCompleted))
	require.NotEmpty(t, review.ID)
	require.False(t, review.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

// A completed row fails the conflict guard, so the upsert reports zero rows
// and the write is refused as locked.
func TestReviewRepositoryUpsertRefusesCompletedRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	accept := models.RecommendAccept
	review := &models.Review{
		SubmissionID:   "s1",
		ReviewerID:     "rev1",
		Recommendation: &accept,
		IsCompleted:    true,
	}
	err := repo.UpsertWithAssignment(context.Background(), review, models.AssignmentCompleted)
	require.ErrorIs(t, err, appErrors.ErrLocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryUpsertRollsBackOnMirrorFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET status = $1")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	review := &models.Review{SubmissionID: "s1", ReviewerID: "rev1"}
	err := repo.UpsertWithAssignment(context.Background(), review, models.AssignmentInProgress)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryDeleteWithAssignmentReset(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reviews WHERE submission_id = $1 AND reviewer_id = $2")).
		WithArgs("s1", "rev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET status = $1 WHERE submission_id = $2 AND reviewer_id = $3")).
		WithArgs(string(models.AssignmentPending), "s1", "rev1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithAssignmentReset(context.Background(), "s1", "rev1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryListCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	rows := sqlmock.NewRows([]string{"id", "submission_id", "reviewer_id", "originality_score", "methodology_score", "clarity_score", "contribution_score",
		"overall_score", "strengths", "weaknesses", "comments_to_authors", "comments_to_committee", "recommendation", "is_completed",
		"created_at", "updated_at"}).
		AddRow("r1", "s1", "rev1", 4, 4, nil, nil, 4.0, nil, nil, nil, nil, "accept", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, submission_id, reviewer_id")).
		WithArgs("s1").
		WillReturnRows(rows)

	reviews, err := repo.ListCompletedBySubmission(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.True(t, reviews[0].IsCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
