package models

import "time"

// SubmissionStatus is the lifecycle state of a paper submission.
type SubmissionStatus string

const (
	StatusDraft             SubmissionStatus = "draft"
	StatusSubmitted         SubmissionStatus = "submitted"
	StatusUnderReview       SubmissionStatus = "under_review"
	StatusAccepted          SubmissionStatus = "accepted"
	StatusRejected          SubmissionStatus = "rejected"
	StatusRevisionRequested SubmissionStatus = "revision_requested"
)

// transitions holds the only legal status edges. Everything else is rejected,
// including backward moves; the single exception is the explicit
// revision_requested → submitted resubmission path.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusDraft:             {StatusSubmitted},
	StatusSubmitted:         {StatusUnderReview},
	StatusUnderReview:       {StatusAccepted, StatusRejected, StatusRevisionRequested},
	StatusRevisionRequested: {StatusSubmitted},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to SubmissionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func (s SubmissionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether the value is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected, StatusRevisionRequested:
		return true
	}
	return false
}

// Decision is an admin verdict on a submission under review.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
	DecisionRevise Decision = "revise"
)

// TargetStatus maps a decision to the status it produces.
func (d Decision) TargetStatus() (SubmissionStatus, bool) {
	switch d {
	case DecisionAccept:
		return StatusAccepted, true
	case DecisionReject:
		return StatusRejected, true
	case DecisionRevise:
		return StatusRevisionRequested, true
	}
	return "", false
}

// Submission is an author's paper entry tied to one event.
type Submission struct {
	ID                  string           `db:"id" json:"id"`
	EventID             string           `db:"event_id" json:"event_id"`
	OwnerID             string           `db:"owner_id" json:"owner_id"`
	Title               string           `db:"title" json:"title"`
	Abstract            string           `db:"abstract" json:"abstract"`
	Keywords            string           `db:"keywords" json:"keywords"`
	CorrespondingAuthor string           `db:"corresponding_author" json:"corresponding_author"`
	CoAuthors           *string          `db:"co_authors" json:"co_authors,omitempty"`
	PDFURL              *string          `db:"pdf_url" json:"pdf_url,omitempty"`
	PDFFilename         *string          `db:"pdf_filename" json:"pdf_filename,omitempty"`
	PDFSizeBytes        *int64           `db:"pdf_size_bytes" json:"pdf_size_bytes,omitempty"`
	Status              SubmissionStatus `db:"status" json:"status"`
	SubmittedAt         *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// HasPDF reports whether a paper file reference is attached.
func (s *Submission) HasPDF() bool {
	return s.PDFURL != nil && *s.PDFURL != ""
}

// SubmissionFilter captures filtering criteria for listing submissions.
type SubmissionFilter struct {
	EventID string
	OwnerID string
	Status  SubmissionStatus
}

// AggregateOutcome is the derived review roll-up for one submission.
// MeanScore is nil until at least one completed review carries a score.
type AggregateOutcome struct {
	SubmissionID         string   `json:"submission_id"`
	MeanScore            *float64 `json:"mean_score"`
	AcceptCount          int      `json:"accept_count"`
	RejectCount          int      `json:"reject_count"`
	CompletedReviewCount int      `json:"completed_review_count"`
	TotalAssignedCount   int      `json:"total_assigned_count"`
}
