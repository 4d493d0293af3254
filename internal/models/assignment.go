package models

import "time"

// AssignmentStatus tracks a reviewer's progress on an assigned submission.
// It is a derived mirror of the associated review's state and is only written
// inside the review upsert transaction.
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Assignment binds one reviewer to one submission for evaluation.
type Assignment struct {
	ID           string           `db:"id" json:"id"`
	SubmissionID string           `db:"submission_id" json:"submission_id"`
	ReviewerID   string           `db:"reviewer_id" json:"reviewer_id"`
	AssignedBy   string           `db:"assigned_by" json:"assigned_by"`
	AssignedAt   time.Time        `db:"assigned_at" json:"assigned_at"`
	DueDate      *time.Time       `db:"due_date" json:"due_date,omitempty"`
	Status       AssignmentStatus `db:"status" json:"status"`
}

// AssignmentDetail enriches assignments with submission context for reviewer
// worklists.
type AssignmentDetail struct {
	Assignment
	SubmissionTitle  string           `db:"submission_title" json:"submission_title"`
	SubmissionStatus SubmissionStatus `db:"submission_status" json:"submission_status"`
}
