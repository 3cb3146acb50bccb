// Package journal provides access to the operation_journal table for
// recording dispatched operations and querying their outcomes.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a journal entry does not exist.
var ErrNotFound = errors.New("journal: entry not found")

// outcomePending marks an entry whose operation has not finished yet.
const outcomePending = "pending"

// timeLayout is a fixed-width RFC 3339 form with nanoseconds, so the
// TEXT column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry represents a single journalled operation.
type Entry struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Handle     string     `json:"handle"`
	Outcome    string     `json:"outcome"` // pending, normal or error
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Filter controls which journal entries to return.
type Filter struct {
	Name    string // optional: filter by operation name
	Outcome string // optional: filter by outcome (pending, normal, error)
	Limit   int    // default 50, max 200
	Offset  int    // pagination offset
}

// ListResult contains the paginated journal results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository reads and writes the operation journal in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new operation journal repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Begin records a dispatched operation and returns its journal ID.
// The entry stays in the pending outcome until Finish is called.
func (r *Repository) Begin(ctx context.Context, name, handle string) (string, error) {
	id := "op-" + uuid.NewString()[:8]

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operation_journal (id, name, handle, outcome, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, name, handle, outcomePending,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("inserting journal entry: %w", err)
	}

	return id, nil
}

// Finish records the outcome of a previously begun operation.
func (r *Repository) Finish(ctx context.Context, id, outcome, message string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE operation_journal SET outcome = ?, message = ?, finished_at = ?
		 WHERE id = ?`,
		outcome, nullableString(message),
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating journal entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking journal update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns journal entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for journal queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Name != "" {
		conditions = append(conditions, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM operation_journal %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, name, handle, outcome, message, started_at, finished_at FROM operation_journal %s ORDER BY started_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Get returns a single journal entry by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, handle, outcome, message, started_at, finished_at FROM operation_journal WHERE id = ?",
		id,
	)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one journal row.
func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var message sql.NullString
	var startedAt string
	var finishedAt sql.NullString

	if err := row.Scan(&entry.ID, &entry.Name, &entry.Handle,
		&entry.Outcome, &message, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning journal entry: %w", err)
	}

	if message.Valid {
		entry.Message = message.String
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing journal timestamp %q: %w", startedAt, err)
	}
	entry.StartedAt = t

	if finishedAt.Valid && finishedAt.String != "" {
		ft, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing journal timestamp %q: %w", finishedAt.String, err)
		}
		entry.FinishedAt = &ft
	}

	return entry, nil
}
