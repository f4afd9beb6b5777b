package store

import (
	"context"
	"errors"

	"github.com/mergington/mhs/internal/models"
)

// Sentinel errors returned by Store implementations. Handlers map these
// onto HTTP status codes with errors.Is.
var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrIssueNotFound    = errors.New("issue not found")
	ErrAlreadySignedUp  = errors.New("already signed up")
	ErrActivityFull     = errors.New("activity is full")
)

// IssueListFilter specifies optional filters for listing issues.
type IssueListFilter struct {
	Category models.IssueCategory
	Status   models.IssueStatus
}

// Store defines the persistence interface for the activities service.
//
// SignUp must perform its duplicate and capacity checks and the roster
// append atomically; two concurrent signups for the last open slot must
// never both succeed.
type Store interface {
	// Activities
	ListActivities(ctx context.Context) (map[string]*models.Activity, error)
	GetActivity(ctx context.Context, name string) (*models.Activity, error)
	SignUp(ctx context.Context, activityName, email string) error

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssueStatus(ctx context.Context, id int64, status models.IssueStatus) (*models.Issue, error)

	// Webhook event log
	AppendWebhookEvent(ctx context.Context, entry *models.WebhookEventLog) error
	ListWebhookEvents(ctx context.Context, eventType string, limit int) ([]*models.WebhookEventLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
