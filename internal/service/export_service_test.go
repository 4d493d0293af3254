package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
)

type mockAggregator struct {
	outcomes map[string]*models.AggregateOutcome
}

func (m *mockAggregator) ComputeAggregate(ctx context.Context, submissionID string) (*models.AggregateOutcome, error) {
	if o, ok := m.outcomes[submissionID]; ok {
		return o, nil
	}
	return &models.AggregateOutcome{SubmissionID: submissionID}, nil
}

func newTestExportService() *ExportService {
	submissions := &mockSubmissionRepo{submissions: map[string]*models.Submission{
		"s1": completeSubmission("s1", "u1", models.StatusAccepted),
	}}
	mean := 3.5
	aggregates := &mockAggregator{outcomes: map[string]*models.AggregateOutcome{
		"s1": {SubmissionID: "s1", MeanScore: &mean, AcceptCount: 2, RejectCount: 1, CompletedReviewCount: 3, TotalAssignedCount: 3},
	}}
	return NewExportService(submissions, aggregates, zap.NewNop())
}

func TestDecisionSheetCSV(t *testing.T) {
	svc := newTestExportService()

	result, err := svc.DecisionSheet(context.Background(), models.NewActor("adm", models.RoleAdmin), "ev1", ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "decision-sheet-ev1.csv", result.Filename)

	body := string(result.Content)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Mean Score")
	assert.Contains(t, lines[1], "A Paper")
	assert.Contains(t, lines[1], "3.50")
	assert.Contains(t, lines[1], "accepted")
}

func TestDecisionSheetPDF(t *testing.T) {
	svc := newTestExportService()

	result, err := svc.DecisionSheet(context.Background(), models.NewActor("adm", models.RoleAdmin), "ev1", ExportPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestDecisionSheetAdminOnly(t *testing.T) {
	svc := newTestExportService()

	_, err := svc.DecisionSheet(context.Background(), models.NewActor("u1", models.RoleUser), "ev1", ExportCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDecisionSheetUnknownFormat(t *testing.T) {
	svc := newTestExportService()

	_, err := svc.DecisionSheet(context.Background(), models.NewActor("adm", models.RoleAdmin), "ev1", ExportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
