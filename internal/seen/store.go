// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package seen persists the identifiers of papers already delivered in
// earlier runs. An identifier in the store never reappears in a report.
package seen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperfeed/pkg/types"
)

// Store is the delivered-ID set, backed by SQLite and mirrored in memory.
// The in-memory set is read-only between Open and Commit; Commit is the
// single writer and runs after all concurrent pipeline work has joined.
type Store struct {
	db  *sql.DB
	ids map[string]bool
}

// Open opens or creates the database at path and loads the full ID set
// into memory. The scale is a few hundred identifiers per day, so a flat
// in-memory set is fine.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating seen-db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening seen database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS delivered (
		id TEXT PRIMARY KEY,
		delivered_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, ids: make(map[string]bool)}

	rows, err := db.Query(`SELECT id FROM delivered`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading delivered ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			db.Close()
			return nil, fmt.Errorf("scanning delivered id: %w", err)
		}
		s.ids[id] = true
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading delivered ids: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Contains reports whether id was delivered in a previous run.
func (s *Store) Contains(id string) bool {
	return s.ids[id]
}

// Len returns the number of delivered identifiers.
func (s *Store) Len() int {
	return len(s.ids)
}

// FilterUnseen returns the papers whose identifiers are not in the store,
// preserving input order.
func (s *Store) FilterUnseen(papers []types.Paper) []types.Paper {
	var unseen []types.Paper
	for _, p := range papers {
		if !s.ids[p.ID] {
			unseen = append(unseen, p)
		}
	}
	return unseen
}

// Commit records ids as delivered in a single transaction, so a crash
// either commits the whole run's identifiers or none of them. Already
// present identifiers are ignored.
func (s *Store) Commit(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting commit transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO delivered (id, delivered_at) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delivered ids: %w", err)
	}

	for _, id := range ids {
		s.ids[id] = true
	}
	return nil
}

// List returns all delivered identifiers in ascending order.
func (s *Store) List() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
