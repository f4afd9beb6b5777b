package models

import "time"

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
)

// ValidStatus reports whether s is one of the known issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved:
		return true
	}
	return false
}

// IssueCategory represents the kind of feedback an issue tracks.
type IssueCategory string

const (
	IssueCategoryBug            IssueCategory = "bug"
	IssueCategoryFeatureRequest IssueCategory = "feature_request"
	IssueCategoryFeedback       IssueCategory = "feedback"
	IssueCategoryQuestion       IssueCategory = "question"
)

// ValidCategory reports whether c is one of the known issue categories.
func ValidCategory(c IssueCategory) bool {
	switch c {
	case IssueCategoryBug, IssueCategoryFeatureRequest, IssueCategoryFeedback, IssueCategoryQuestion:
		return true
	}
	return false
}

// Issue is a student-submitted feedback/bug/feature item, optionally
// linked to an activity. IDs are sequential starting at 1.
type Issue struct {
	ID              int64         `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Category        IssueCategory `json:"category"`
	RelatedActivity string        `json:"related_activity,omitempty"`
	ReporterEmail   string        `json:"reporter_email"`
	Status          IssueStatus   `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}
