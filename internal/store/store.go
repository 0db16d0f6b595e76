// Package store persists the repository registry and draft history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gitsmart/internal/logging"
)

// Repository is one registry entry.
type Repository struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	LastUsed time.Time `json:"last_used"`
}

// Draft is one recorded commit message draft.
type Draft struct {
	ID        int64     `json:"id"`
	RepoPath  string    `json:"repo_path"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Fallback  bool      `json:"fallback"`
	Committed bool      `json:"committed"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the database at path, creating directories and schema as
// needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("store opened at %s", path)
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		path       TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		last_used  TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS drafts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_path  TEXT NOT NULL,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		fallback   INTEGER NOT NULL DEFAULT 0,
		committed  INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_repo ON drafts(repo_path, created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Touch records that the repository at path was used now, registering it on
// first sight.
func (s *Store) Touch(path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO repositories (path, name, last_used) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, last_used = excluded.last_used`,
		path, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record repository: %w", err)
	}
	return nil
}

// List returns all known repositories, most recently used first.
func (s *Store) List() ([]Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT path, name, last_used FROM repositories ORDER BY last_used DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(&r.Path, &r.Name, &r.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// SaveDraft records a generated draft and returns its id.
func (s *Store) SaveDraft(repoPath, title, message string, fallback, committed bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO drafts (repo_path, title, message, fallback, committed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		repoPath, title, message, fallback, committed, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to save draft: %w", err)
	}
	return res.LastInsertId()
}

// MarkCommitted flags a saved draft as committed.
func (s *Store) MarkCommitted(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`UPDATE drafts SET committed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark draft committed: %w", err)
	}
	return nil
}

// RecentDrafts returns the newest n drafts for a repository.
func (s *Store) RecentDrafts(repoPath string, n int) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, repo_path, title, message, fallback, committed, created_at
		FROM drafts WHERE repo_path = ? ORDER BY created_at DESC LIMIT ?`,
		repoPath, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.RepoPath, &d.Title, &d.Message, &d.Fallback, &d.Committed, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
