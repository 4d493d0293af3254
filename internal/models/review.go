package models

import "time"

// ReviewRecommendation is a reviewer's verdict on a submission.
type ReviewRecommendation string

const (
	RecommendAccept ReviewRecommendation = "accept"
	RecommendReject ReviewRecommendation = "reject"
)

// Valid reports whether the value is a known recommendation.
func (r ReviewRecommendation) Valid() bool {
	return r == RecommendAccept || r == RecommendReject
}

// Review is a reviewer's scored and narrative evaluation of one submission.
// At most one review exists per (submission, reviewer) pair. Once completed
// it becomes read-only to the reviewer.
type Review struct {
	ID                  string                `db:"id" json:"id"`
	SubmissionID        string                `db:"submission_id" json:"submission_id"`
	ReviewerID          string                `db:"reviewer_id" json:"reviewer_id"`
	OriginalityScore    *int                  `db:"originality_score" json:"originality_score,omitempty"`
	MethodologyScore    *int                  `db:"methodology_score" json:"methodology_score,omitempty"`
	ClarityScore        *int                  `db:"clarity_score" json:"clarity_score,omitempty"`
	ContributionScore   *int                  `db:"contribution_score" json:"contribution_score,omitempty"`
	OverallScore        *float64              `db:"overall_score" json:"overall_score,omitempty"`
	Strengths           *string               `db:"strengths" json:"strengths,omitempty"`
	Weaknesses          *string               `db:"weaknesses" json:"weaknesses,omitempty"`
	CommentsToAuthors   *string               `db:"comments_to_authors" json:"comments_to_authors,omitempty"`
	CommentsToCommittee *string               `db:"comments_to_committee" json:"comments_to_committee,omitempty"`
	Recommendation      *ReviewRecommendation `db:"recommendation" json:"recommendation,omitempty"`
	IsCompleted         bool                  `db:"is_completed" json:"is_completed"`
	CreatedAt           time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time             `db:"updated_at" json:"updated_at"`
}

// CriterionScores returns the four criterion scores in a fixed order.
func (r *Review) CriterionScores() []*int {
	return []*int{r.OriginalityScore, r.MethodologyScore, r.ClarityScore, r.ContributionScore}
}

// ComputeOverall derives the overall score as the mean of the criterion
// scores that are set. Returns nil when no score is set.
func (r *Review) ComputeOverall() *float64 {
	sum := 0
	count := 0
	for _, score := range r.CriterionScores() {
		if score != nil {
			sum += *score
			count++
		}
	}
	if count == 0 {
		return nil
	}
	overall := float64(sum) / float64(count)
	return &overall
}
