package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lawrelay/lawyer-bot/internal/models"
)

// SQLiteStore keeps pending submissions in a SQLite table. Each operation
// is a single statement or transaction, so readers never see a partial write.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite store path is empty")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=FULL", dbPath)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps the read-modify-write of a key serialized.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		forward_id TEXT PRIMARY KEY,
		requester_id INTEGER NOT NULL,
		requester_name TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		phone TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_requester ON submissions(requester_id);
	`

	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Put inserts or replaces the submission keyed by its forward id
func (s *SQLiteStore) Put(ctx context.Context, sub models.Submission) error {
	if err := validate(sub); err != nil {
		return err
	}
	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO submissions (forward_id, requester_id, requester_name, question, phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ForwardID, sub.RequesterID, sub.RequesterName, sub.Question, sub.Phone, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store submission %s: %w", sub.ForwardID, err)
	}
	return nil
}

// Get retrieves a submission by forward id
func (s *SQLiteStore) Get(ctx context.Context, forwardID string) (models.Submission, bool, error) {
	var sub models.Submission
	err := s.conn.QueryRowContext(ctx,
		`SELECT forward_id, requester_id, requester_name, question, phone, created_at
		 FROM submissions WHERE forward_id = ?`, forwardID,
	).Scan(&sub.ForwardID, &sub.RequesterID, &sub.RequesterName, &sub.Question, &sub.Phone, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Submission{}, false, nil
	}
	if err != nil {
		return models.Submission{}, false, fmt.Errorf("failed to load submission %s: %w", forwardID, err)
	}
	return sub, true, nil
}

// Delete removes a submission; deleting a missing id is not an error
func (s *SQLiteStore) Delete(ctx context.Context, forwardID string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM submissions WHERE forward_id = ?`, forwardID)
	if err != nil {
		return fmt.Errorf("failed to delete submission %s: %w", forwardID, err)
	}
	return nil
}

// LoadAll returns every pending submission
func (s *SQLiteStore) LoadAll(ctx context.Context) (map[string]models.Submission, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT forward_id, requester_id, requester_name, question, phone, created_at
		 FROM submissions ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string]models.Submission)
	for rows.Next() {
		var sub models.Submission
		err := rows.Scan(&sub.ForwardID, &sub.RequesterID, &sub.RequesterName, &sub.Question, &sub.Phone, &sub.CreatedAt)
		if err != nil {
			return nil, err
		}
		items[sub.ForwardID] = sub
	}

	return items, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
