package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mergington/mhs/internal/models"
)

// MemoryStore is the default in-process backend. A single mutex guards all
// state; SignUp runs its validate-then-append sequence inside the critical
// section so the capacity invariant holds under concurrent requests.
type MemoryStore struct {
	mu            sync.Mutex
	activities    map[string]*models.Activity
	issues        []*models.Issue
	nextIssueID   int64
	webhookEvents []*models.WebhookEventLog
}

// NewMemoryStore creates a store seeded with the fixed activity list.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		activities:  make(map[string]*models.Activity),
		nextIssueID: 1,
	}
	for _, a := range SeedActivities() {
		s.activities[a.Name] = a
	}
	return s
}

func copyActivity(a *models.Activity) *models.Activity {
	out := *a
	out.Participants = append([]string(nil), a.Participants...)
	return &out
}

func copyIssue(i *models.Issue) *models.Issue {
	out := *i
	return &out
}

// --- Activities ---

func (s *MemoryStore) ListActivities(_ context.Context) (map[string]*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*models.Activity, len(s.activities))
	for name, a := range s.activities {
		out[name] = copyActivity(a)
	}
	return out, nil
}

func (s *MemoryStore) GetActivity(_ context.Context, name string) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[name]
	if !ok {
		return nil, ErrActivityNotFound
	}
	return copyActivity(a), nil
}

func (s *MemoryStore) SignUp(_ context.Context, activityName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[activityName]
	if !ok {
		return ErrActivityNotFound
	}

	lower := strings.ToLower(email)
	for _, p := range a.Participants {
		if strings.ToLower(p) == lower {
			return ErrAlreadySignedUp
		}
	}
	if len(a.Participants) >= a.MaxParticipants {
		return ErrActivityFull
	}

	// Emails are stored lowercase; duplicate detection above is
	// case-insensitive to match.
	a.Participants = append(a.Participants, lower)
	return nil
}

// --- Issues ---

func (s *MemoryStore) CreateIssue(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue.ID = s.nextIssueID
	s.nextIssueID++
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}
	s.issues = append(s.issues, copyIssue(issue))
	return nil
}

func (s *MemoryStore) GetIssue(_ context.Context, id int64) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.issues {
		if i.ID == id {
			return copyIssue(i), nil
		}
	}
	return nil, ErrIssueNotFound
}

func (s *MemoryStore) ListIssues(_ context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Issue
	for _, i := range s.issues {
		if filter.Category != "" && i.Category != filter.Category {
			continue
		}
		if filter.Status != "" && i.Status != filter.Status {
			continue
		}
		out = append(out, copyIssue(i))
	}
	return out, nil
}

func (s *MemoryStore) UpdateIssueStatus(_ context.Context, id int64, status models.IssueStatus) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.issues {
		if i.ID == id {
			i.Status = status
			return copyIssue(i), nil
		}
	}
	return nil, ErrIssueNotFound
}

// --- Webhook event log ---

func (s *MemoryStore) AppendWebhookEvent(_ context.Context, entry *models.WebhookEventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.webhookEvents = append(s.webhookEvents, &cp)
	return nil
}

func (s *MemoryStore) ListWebhookEvents(_ context.Context, eventType string, limit int) ([]*models.WebhookEventLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.WebhookEventLog
	for _, e := range s.webhookEvents {
		if eventType != "" && e.EventType != eventType {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- Lifecycle ---

// Migrate is a no-op; the memory store is seeded at construction.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
