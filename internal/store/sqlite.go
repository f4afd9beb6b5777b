package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mergington/mhs/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
// It is the durable alternative to MemoryStore for deployments that need
// rosters and issues to survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order, then seeds the
// fixed activity list. Seeding uses INSERT OR IGNORE so an existing
// database keeps its rosters.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return s.seedActivities(ctx)
}

func (s *SQLiteStore) seedActivities(ctx context.Context) error {
	for _, a := range SeedActivities() {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO activities (name, description, schedule, max_participants) VALUES (?, ?, ?, ?)`,
			a.Name, a.Description, a.Schedule, a.MaxParticipants,
		)
		if err != nil {
			return fmt.Errorf("seed activity %s: %w", a.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			continue
		}
		for pos, email := range a.Participants {
			if _, err := s.db.ExecContext(ctx,
				`INSERT OR IGNORE INTO participants (activity_name, email, position) VALUES (?, ?, ?)`,
				a.Name, strings.ToLower(email), pos,
			); err != nil {
				return fmt.Errorf("seed participant %s: %w", email, err)
			}
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Activities ---

func (s *SQLiteStore) participantsFor(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, name string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT email FROM participants WHERE activity_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (s *SQLiteStore) ListActivities(ctx context.Context) (map[string]*models.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, schedule, max_participants FROM activities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Activity)
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out[a.Name] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range out {
		a.Participants, err = s.participantsFor(ctx, s.db, a.Name)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) GetActivity(ctx context.Context, name string) (*models.Activity, error) {
	a := &models.Activity{}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, schedule, max_participants FROM activities WHERE name = ?`, name,
	).Scan(&a.Name, &a.Description, &a.Schedule, &a.MaxParticipants)
	if err == sql.ErrNoRows {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}

	a.Participants, err = s.participantsFor(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLiteStore) SignUp(ctx context.Context, activityName, email string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signup: %w", err)
	}
	defer tx.Rollback()

	var maxParticipants int
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants FROM activities WHERE name = ?`, activityName,
	).Scan(&maxParticipants)
	if err == sql.ErrNoRows {
		return ErrActivityNotFound
	}
	if err != nil {
		return fmt.Errorf("get activity: %w", err)
	}

	lower := strings.ToLower(email)

	var dup int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE activity_name = ? AND lower(email) = ?`,
		activityName, lower,
	).Scan(&dup)
	if err != nil {
		return fmt.Errorf("check duplicate: %w", err)
	}
	if dup > 0 {
		return ErrAlreadySignedUp
	}

	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE activity_name = ?`, activityName,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("count participants: %w", err)
	}
	if taken >= maxParticipants {
		return ErrActivityFull
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO participants (activity_name, email, position) VALUES (?, ?, ?)`,
		activityName, lower, taken,
	); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}

	return tx.Commit()
}

// --- Issues ---

func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (title, description, category, related_activity, reporter_email, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issue.Title, issue.Description, issue.Category, issue.RelatedActivity,
		issue.ReporterEmail, issue.Status, issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	issue.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("issue id: %w", err)
	}
	return nil
}

func scanIssue(row interface{ Scan(dest ...any) error }) (*models.Issue, error) {
	i := &models.Issue{}
	err := row.Scan(&i.ID, &i.Title, &i.Description, &i.Category, &i.RelatedActivity,
		&i.ReporterEmail, &i.Status, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return i, nil
}

const issueColumns = `id, title, description, category, related_activity, reporter_email, status, created_at`

func (s *SQLiteStore) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	i, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return i, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var out []*models.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateIssueStatus(ctx context.Context, id int64, status models.IssueStatus) (*models.Issue, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update issue status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update issue status: %w", err)
	}
	if n == 0 {
		return nil, ErrIssueNotFound
	}
	return s.GetIssue(ctx, id)
}

// --- Webhook event log ---

func (s *SQLiteStore) AppendWebhookEvent(ctx context.Context, entry *models.WebhookEventLog) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	processed := 0
	if entry.Processed {
		processed = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event_id, event_type, workspace_id, data_source_id, object_id, received_at, processed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EventID, entry.EventType, entry.WorkspaceID, entry.DataSourceID,
		entry.ObjectID, entry.ReceivedAt, processed, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("append webhook event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListWebhookEvents(ctx context.Context, eventType string, limit int) ([]*models.WebhookEventLog, error) {
	query := `SELECT id, event_id, event_type, workspace_id, data_source_id, object_id, received_at, processed, error
		FROM webhook_events`
	var args []any
	if eventType != "" {
		query += " WHERE event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY received_at, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookEventLog
	for rows.Next() {
		e := &models.WebhookEventLog{}
		var processed int
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.WorkspaceID, &e.DataSourceID,
			&e.ObjectID, &e.ReceivedAt, &processed, &e.Error); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		e.Processed = processed != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
