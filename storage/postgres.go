package storage

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists into PostgreSQL through a pgx connection pool
type PostgresStore struct {
	*sqlStore
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the schema
func OpenPostgres(ctx context.Context, dsn string, plans types.PlanTable) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{
		sqlStore: newSQLStore(pgDB{pool}, sq.Dollar, plans),
		pool:     pool,
	}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgDB struct {
	pool *pgxpool.Pool
}

func (d pgDB) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (d pgDB) query(ctx context.Context, query string, args ...interface{}) (rows, error) {
	return d.pool.Query(ctx, query, args...)
}
