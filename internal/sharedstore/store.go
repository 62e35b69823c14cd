// Package sharedstore implements the cross-worktree shared-permissions
// store: an external collaborator whose contract is simply "returns a
// list of allow-rules". The Permission Broker's Always-Allow path
// needs a real persistence target keyed by repository identity, shared
// across worktrees of the same repo. This package gives that contract
// a concrete, embedded-SQLite-backed home.
package sharedstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store persists AllowRule strings (the same "Tool" or "Bash(prefix)"
// textual form the repo-local settings file uses) keyed by repository
// identity.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the shared-permissions database
// at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sharedstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite tolerates one writer well; avoid lock contention

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sharedstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS allow_rules (
	repo_identity TEXT NOT NULL,
	rule          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (repo_identity, rule)
);
`

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddRule persists rule for repoIdentity, idempotently.
func (s *Store) AddRule(ctx context.Context, repoIdentity, rule string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allow_rules (repo_identity, rule, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (repo_identity, rule) DO NOTHING`,
		repoIdentity, rule, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("sharedstore: add rule: %w", err)
	}
	return nil
}

// Rules returns every rule persisted for repoIdentity: the external
// collaborator contract is simply "returns a list of allow-rules".
func (s *Store) Rules(ctx context.Context, repoIdentity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule FROM allow_rules WHERE repo_identity = ? ORDER BY created_at`, repoIdentity)
	if err != nil {
		return nil, fmt.Errorf("sharedstore: query rules: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rule string
		if err := rows.Scan(&rule); err != nil {
			return nil, fmt.Errorf("sharedstore: scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
