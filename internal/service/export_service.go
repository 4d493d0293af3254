package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	appErrors "github.com/noah-isme/confero-api/pkg/errors"
	"github.com/noah-isme/confero-api/pkg/export"
)

type exportSubmissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type exportAggregator interface {
	ComputeAggregate(ctx context.Context, submissionID string) (*models.AggregateOutcome, error)
}

// ExportFormat selects the decision sheet output encoding.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult bundles the rendered document with its HTTP metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders per-event decision sheets for the committee.
type ExportService struct {
	submissions exportSubmissionLister
	aggregates  exportAggregator
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(submissions exportSubmissionLister, aggregates exportAggregator, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		submissions: submissions,
		aggregates:  aggregates,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

var decisionSheetHeaders = []string{"Title", "Corresponding Author", "Status", "Mean Score", "Accept", "Reject", "Reviews Completed", "Reviewers Assigned"}

// DecisionSheet renders the decision overview for every submission of an
// event. Admin only.
func (s *ExportService) DecisionSheet(ctx context.Context, actor models.Actor, eventID string, format ExportFormat) (*ExportResult, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	if format != ExportCSV && format != ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	submissions, err := s.submissions.List(ctx, models.SubmissionFilter{EventID: eventID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	rows := make([]map[string]string, 0, len(submissions))
	for _, submission := range submissions {
		outcome, err := s.aggregates.ComputeAggregate(ctx, submission.ID)
		if err != nil {
			return nil, err
		}
		meanScore := "-"
		if outcome.MeanScore != nil {
			meanScore = strconv.FormatFloat(*outcome.MeanScore, 'f', 2, 64)
		}
		rows = append(rows, map[string]string{
			"Title":                submission.Title,
			"Corresponding Author": submission.CorrespondingAuthor,
			"Status":               string(submission.Status),
			"Mean Score":           meanScore,
			"Accept":               strconv.Itoa(outcome.AcceptCount),
			"Reject":               strconv.Itoa(outcome.RejectCount),
			"Reviews Completed":    strconv.Itoa(outcome.CompletedReviewCount),
			"Reviewers Assigned":   strconv.Itoa(outcome.TotalAssignedCount),
		})
	}

	dataset := export.Dataset{Headers: decisionSheetHeaders, Rows: rows}
	switch format {
	case ExportPDF:
		content, err := s.pdf.Render(dataset, "Decision Sheet")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render decision sheet")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("decision-sheet-%s.pdf", eventID),
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render decision sheet")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("decision-sheet-%s.csv", eventID),
		}, nil
	}
}
