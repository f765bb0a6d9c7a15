// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-based implementation of Store.
//
// By default it uses a shared in-memory database that is lost when the
// process ends. For persistent storage, provide a file path.
type SQLiteStore struct {
	dbDSN      string
	turnsTable string
	db         *sql.DB
	mu         sync.Mutex
}

type SQLiteStoreParams struct {
	// Optional database data source name.
	// Defaults to "file::memory:?cache=shared".
	DBDataSourceName string

	// Optional name of the table to store chat turns.
	// Defaults to "chat_turns".
	TurnsTable string
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(ctx context.Context, params SQLiteStoreParams) (_ *SQLiteStore, err error) {
	s := &SQLiteStore{
		dbDSN:      cmp.Or(params.DBDataSourceName, "file::memory:?cache=shared"),
		turnsTable: cmp.Or(params.TurnsTable, "chat_turns"),
	}

	defer func() {
		if err != nil && s.db != nil {
			if e := s.db.Close(); e != nil {
				err = errors.Join(err, e)
			}
		}
	}()

	s.db, err = sql.Open("sqlite3", s.dbDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	err = s.initDB(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) AddTurns(ctx context.Context, subject string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := s.db.ExecContext(
			ctx,
			fmt.Sprintf(`INSERT INTO "%s" (subject, role, text, created_at) VALUES (?, ?, ?, ?)`, s.turnsTable),
			subject, string(turn.Role), turn.Text, createdAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("error inserting chat turn: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Turns(ctx context.Context, subject string, limit int) (_ []Turn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	if limit <= 0 {
		// Fetch all turns in chronological order
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT role, text, created_at FROM "%s"
			WHERE subject = ?
			ORDER BY id ASC
		`, s.turnsTable), subject)
	} else {
		// Fetch the latest N turns in chronological order
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT role, text, created_at FROM "%s"
			WHERE subject = ?
			ORDER BY id DESC
			LIMIT ?
		`, s.turnsTable), subject, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying chat turns: %w", err)
	}
	defer func() {
		if e := rows.Close(); e != nil {
			err = errors.Join(err, fmt.Errorf("error closing sql.Rows: %w", e))
		}
	}()

	var turns []Turn
	for rows.Next() {
		var role, text string
		var createdAt time.Time
		if err = rows.Scan(&role, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("sql rows scan error: %w", err)
		}
		turns = append(turns, Turn{Role: Role(role), Text: text, CreatedAt: createdAt})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("sql rows scan error: %w", err)
	}

	// Reverse to get chronological order when using DESC
	if limit > 0 {
		slices.Reverse(turns)
	}
	return turns, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf(`DELETE FROM "%s" WHERE subject = ?`, s.turnsTable),
		subject,
	)
	if err != nil {
		return fmt.Errorf("error clearing chat turns: %w", err)
	}
	return nil
}

// Initialize the database schema.
func (s *SQLiteStore) initDB(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s" (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			subject TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, s.turnsTable))
	if err != nil {
		return fmt.Errorf("error creating turns table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS "idx_%s_subject" ON "%s" (subject, id)`,
		s.turnsTable, s.turnsTable))
	if err != nil {
		return fmt.Errorf("error creating index: %w", err)
	}
	return nil
}

// Close the database connection.
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
