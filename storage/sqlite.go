package storage

import (
	"context"
	"database/sql"
	"fmt"

	"pricewatch/internal/types"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists into a single SQLite file
type SQLiteStore struct {
	*sqlStore
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and creates the schema
func OpenSQLite(ctx context.Context, path string, plans types.PlanTable) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time; the worker pool would otherwise hit SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	store := &SQLiteStore{
		sqlStore: newSQLStore(sqliteDB{conn}, sq.Question, plans),
		conn:     conn,
	}
	if err := store.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type sqliteDB struct {
	conn *sql.DB
}

func (d sqliteDB) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d sqliteDB) query(ctx context.Context, query string, args ...interface{}) (rows, error) {
	rs, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rs}, nil
}

// sqlRows drops the error of (*sql.Rows).Close; Err reports read failures
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	r.Rows.Close()
}
