// Package storage persists tracked items, cooldown entries and the alert log.
package storage

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/types"
)

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the full repository used by the daemon: the scheduler's item
// repository, cooldown store and alert log plus item management.
type Store interface {
	InsertItem(ctx context.Context, item types.TrackedItem) (types.TrackedItem, error)
	GetItem(ctx context.Context, itemID string) (*types.TrackedItem, error)
	ListItems(ctx context.Context) ([]types.TrackedItem, error)
	DeleteItem(ctx context.Context, itemID string) error

	ListDueItems(ctx context.Context, now time.Time) ([]types.TrackedItem, error)
	UpdateCheckResult(ctx context.Context, itemID string, result types.CheckResult) error
	GetPlanConfig(ctx context.Context, tier types.PlanTier) (types.PlanConfig, error)

	GetCooldown(ctx context.Context, itemID string, alertType types.AlertType) (*types.CooldownEntry, error)
	PutCooldown(ctx context.Context, entry types.CooldownEntry) error

	AppendAlert(ctx context.Context, event types.AlertEvent) error
	ListAlerts(ctx context.Context, itemID string) ([]types.AlertEvent, error)

	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open creates the store for driver. dsn is a file path for sqlite and a
// connection string for postgres; memory ignores it.
func Open(ctx context.Context, driver, dsn string, plans types.PlanTable, logger types.Logger) (Store, error) {
	switch driver {
	case "", DriverMemory:
		logger.Info("Using in-memory storage")
		return NewMemoryStore(plans), nil
	case DriverSQLite:
		logger.Infof("Using SQLite storage at %s", dsn)
		return OpenSQLite(ctx, dsn, plans)
	case DriverPostgres:
		logger.Info("Using PostgreSQL storage")
		return OpenPostgres(ctx, dsn, plans)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
