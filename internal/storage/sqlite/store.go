// Package sqlite provides a SQLite-backed account store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/echorelay/internal/dependencies/clock"
	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	document   TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store persists accounts in SQLite. Listing order follows the autoincrement
// sequence, which an upsert leaves untouched.
type Store struct {
	sqlDB *sql.DB
	clock clock.Clock
}

// Ensure Store implements the interface
var _ storage.AccountStore = (*Store)(nil)

// Open opens a SQLite account store at path and creates the schema if needed
func Open(path string, clk clock.Clock) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", model.ErrInvalidArgument)
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, unavailable("ping", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: clk}, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) GetAccount(ctx context.Context, id model.XPlatformID) (*model.Account, error) {
	var raw string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT document FROM accounts WHERE id = ?`, id.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, unavailable("get account", err)
	}

	doc, err := document.Parse([]byte(raw))
	if err != nil {
		return nil, corrupt("account "+id.String(), err)
	}
	return &model.Account{ID: id, Document: doc}, nil
}

func (s *Store) SaveAccount(ctx context.Context, account *model.Account) error {
	data, err := account.Document.MarshalJSON()
	if err != nil {
		return err
	}
	now := toMillis(s.clock.Now())

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO accounts (id, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   document = excluded.document,
		   updated_at = excluded.updated_at`,
		account.ID.String(),
		string(data),
		now,
		now,
	)
	if err != nil {
		return unavailable("save account", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id model.XPlatformID) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id.String())
	if err != nil {
		return unavailable("delete account", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete account", err)
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccountIDs(ctx context.Context, offset, limit int) ([]model.XPlatformID, error) {
	if err := model.ValidateWindow(offset, limit); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM accounts ORDER BY seq LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	defer rows.Close()

	ids := make([]model.XPlatformID, 0, min(limit, 64))
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("scan account id", err)
		}
		id, err := model.ParseXPlatformID(raw)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("account id %q", raw), err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list accounts", err)
	}
	return ids, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: sqlite %s: %v", model.ErrCorruptRecord, what, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: sqlite %s: %v", model.ErrBackingStoreUnavailable, op, err)
}
