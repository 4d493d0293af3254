package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type mockAssignmentRepo struct {
	assignments map[string]*models.Assignment
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]*models.Assignment)
	}
	if assignment.ID == "" {
		assignment.ID = "a-" + assignment.SubmissionID + "-" + assignment.ReviewerID
	}
	copied := *assignment
	m.assignments[assignment.ID] = &copied
	return nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) Exists(ctx context.Context, submissionID, reviewerID string) (bool, error) {
	for _, a := range m.assignments {
		if a.SubmissionID == submissionID && a.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAssignmentRepo) ListBySubmission(ctx context.Context, submissionID string) ([]models.Assignment, error) {
	var list []models.Assignment
	for _, a := range m.assignments {
		if a.SubmissionID == submissionID {
			list = append(list, *a)
		}
	}
	return list, nil
}

func (m *mockAssignmentRepo) ListByReviewer(ctx context.Context, reviewerID string) ([]models.AssignmentDetail, error) {
	var list []models.AssignmentDetail
	for _, a := range m.assignments {
		if a.ReviewerID == reviewerID {
			list = append(list, models.AssignmentDetail{Assignment: *a, SubmissionTitle: "A Paper", SubmissionStatus: models.StatusUnderReview})
		}
	}
	return list, nil
}

func (m *mockAssignmentRepo) DeleteIfNotCompleted(ctx context.Context, id string) (bool, error) {
	a, ok := m.assignments[id]
	if !ok {
		return false, nil
	}
	if a.Status == models.AssignmentCompleted {
		return false, nil
	}
	delete(m.assignments, id)
	return true, nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockReviewResetter struct {
	resets []string
}

func (m *mockReviewResetter) DeleteWithAssignmentReset(ctx context.Context, submissionID, reviewerID string) error {
	m.resets = append(m.resets, pairKey(submissionID, reviewerID))
	return nil
}

func newTestAssignmentService() (*AssignmentService, *mockAssignmentRepo, *mockReviewResetter, *mockCache) {
	assignments := &mockAssignmentRepo{}
	users := &mockUserReader{users: map[string]*models.User{
		"rev1":  {ID: "rev1", Email: "rev1@example.org", Roles: pq.StringArray{"USER", "REVIEWER"}, Active: true},
		"plain": {ID: "plain", Email: "plain@example.org", Roles: pq.StringArray{"USER"}, Active: true},
	}}
	submissions := &mockSubmissionRepo{submissions: map[string]*models.Submission{
		"s1": completeSubmission("s1", "owner", models.StatusUnderReview),
	}}
	resetter := &mockReviewResetter{}
	cache := &mockCache{}
	svc := NewAssignmentService(assignments, users, submissions, resetter, cache, validator.New(), zap.NewNop())
	return svc, assignments, resetter, cache
}

func TestAssignReviewer(t *testing.T) {
	svc, assignments, _, cache := newTestAssignmentService()

	assignment, err := svc.Assign(context.Background(), models.NewActor("adm", models.RoleAdmin), "s1", AssignReviewerRequest{ReviewerID: "rev1"})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentPending, assignment.Status)
	assert.Equal(t, "adm", assignment.AssignedBy)
	assert.Len(t, assignments.assignments, 1)
	assert.Contains(t, cache.deleted, AggregateCacheKey("s1"))
}

func TestAssignReviewerRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newTestAssignmentService()

	_, err := svc.Assign(context.Background(), models.NewActor("rev1", models.RoleReviewer), "s1", AssignReviewerRequest{ReviewerID: "rev1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignReviewerRejectsDuplicate(t *testing.T) {
	svc, _, _, _ := newTestAssignmentService()
	admin := models.NewActor("adm", models.RoleAdmin)

	_, err := svc.Assign(context.Background(), admin, "s1", AssignReviewerRequest{ReviewerID: "rev1"})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), admin, "s1", AssignReviewerRequest{ReviewerID: "rev1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignReviewerRequiresReviewerRole(t *testing.T) {
	svc, _, _, _ := newTestAssignmentService()

	_, err := svc.Assign(context.Background(), models.NewActor("adm", models.RoleAdmin), "s1", AssignReviewerRequest{ReviewerID: "plain"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignReviewerUnknownTargets(t *testing.T) {
	svc, _, _, _ := newTestAssignmentService()
	admin := models.NewActor("adm", models.RoleAdmin)

	_, err := svc.Assign(context.Background(), admin, "missing", AssignReviewerRequest{ReviewerID: "rev1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Assign(context.Background(), admin, "s1", AssignReviewerRequest{ReviewerID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRemoveAssignmentGuardsCompleted(t *testing.T) {
	svc, assignments, _, _ := newTestAssignmentService()
	assignments.assignments = map[string]*models.Assignment{
		"a1": {ID: "a1", SubmissionID: "s1", ReviewerID: "rev1", Status: models.AssignmentCompleted},
	}

	err := svc.Remove(context.Background(), models.NewActor("adm", models.RoleAdmin), "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Contains(t, assignments.assignments, "a1")
}

func TestRemoveAssignmentPending(t *testing.T) {
	svc, assignments, _, cache := newTestAssignmentService()
	assignments.assignments = map[string]*models.Assignment{
		"a1": {ID: "a1", SubmissionID: "s1", ReviewerID: "rev1", Status: models.AssignmentPending},
	}

	err := svc.Remove(context.Background(), models.NewActor("adm", models.RoleAdmin), "a1")
	require.NoError(t, err)
	assert.Empty(t, assignments.assignments)
	assert.Contains(t, cache.deleted, AggregateCacheKey("s1"))
}

func TestRemoveReviewResetsAssignment(t *testing.T) {
	svc, _, resetter, cache := newTestAssignmentService()

	err := svc.RemoveReview(context.Background(), models.NewActor("adm", models.RoleAdmin), "s1", "rev1")
	require.NoError(t, err)
	assert.Equal(t, []string{pairKey("s1", "rev1")}, resetter.resets)
	assert.Contains(t, cache.deleted, AggregateCacheKey("s1"))
}

func TestListMine(t *testing.T) {
	svc, assignments, _, _ := newTestAssignmentService()
	assignments.assignments = map[string]*models.Assignment{
		"a1": {ID: "a1", SubmissionID: "s1", ReviewerID: "rev1", Status: models.AssignmentPending},
		"a2": {ID: "a2", SubmissionID: "s1", ReviewerID: "other", Status: models.AssignmentPending},
	}

	mine, err := svc.ListMine(context.Background(), models.NewActor("rev1", models.RoleReviewer))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "A Paper", mine[0].SubmissionTitle)
}
