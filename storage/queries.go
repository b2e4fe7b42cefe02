package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pricewatch/internal/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// schema is accepted by both SQLite and PostgreSQL. Timestamps are unix seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		mode TEXT NOT NULL,
		tier TEXT NOT NULL,
		target_price DOUBLE PRECISION,
		selected_variant TEXT NOT NULL DEFAULT '',
		last_price DOUBLE PRECISION,
		last_stock SMALLINT,
		last_checked_at BIGINT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_due ON items (tier, last_checked_at)`,
	`CREATE TABLE IF NOT EXISTS cooldowns (
		item_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		last_fired_at BIGINT NOT NULL,
		last_fired_value DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (item_id, alert_type)
	)`,
	`CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_events_item ON alert_events (item_id, created_at)`,
}

var itemColumns = []string{
	"id", "owner_id", "url", "mode", "tier", "target_price", "selected_variant",
	"last_price", "last_stock", "last_checked_at", "created_at",
}

// rows is the common shape of *sql.Rows and pgx.Rows
type rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

// execer runs statements against one database connection pool
type execer interface {
	exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	query(ctx context.Context, query string, args ...interface{}) (rows, error)
}

// sqlStore implements every Store operation on top of an execer.
// SQLiteStore and PostgresStore only differ in placeholders and connection.
type sqlStore struct {
	db      execer
	builder sq.StatementBuilderType
	plans   types.PlanTable
}

func newSQLStore(db execer, format sq.PlaceholderFormat, plans types.PlanTable) *sqlStore {
	if len(plans) == 0 {
		plans = types.DefaultPlans()
	}
	return &sqlStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		plans:   plans,
	}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) InsertItem(ctx context.Context, item types.TrackedItem) (types.TrackedItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.builder.Insert("items").Columns(itemColumns...).Values(
		item.ID, item.OwnerID, item.URL, string(item.Mode), string(item.Tier), item.TargetPrice,
		item.SelectedVariant, item.LastPrice, stockToInt(item.LastStock), timeToUnix(item.LastCheckedAt),
		item.CreatedAt.Unix(),
	).ToSql()
	if err != nil {
		return types.TrackedItem{}, fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.exec(ctx, query, args...); err != nil {
		return types.TrackedItem{}, fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	item.CreatedAt = time.Unix(item.CreatedAt.Unix(), 0).UTC()
	return item, nil
}

func (s *sqlStore) GetItem(ctx context.Context, itemID string) (*types.TrackedItem, error) {
	items, err := s.selectItems(ctx, sq.Eq{"id": itemID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}
	return &items[0], nil
}

func (s *sqlStore) ListItems(ctx context.Context) ([]types.TrackedItem, error) {
	return s.selectItems(ctx, nil)
}

func (s *sqlStore) DeleteItem(ctx context.Context, itemID string) error {
	query, args, err := s.builder.Delete("items").Where(sq.Eq{"id": itemID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	n, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}

	query, args, err = s.builder.Delete("cooldowns").Where(sq.Eq{"item_id": itemID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := s.db.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cooldowns of %s: %w", itemID, err)
	}
	return nil
}

func (s *sqlStore) ListDueItems(ctx context.Context, now time.Time) ([]types.TrackedItem, error) {
	return s.selectItems(ctx, dueCondition(s.plans, now))
}

// dueCondition selects never-checked items plus, per plan tier, items whose
// last check is older than the tier's interval. Tiers missing from the table
// use the Free interval.
func dueCondition(plans types.PlanTable, now time.Time) sq.Sqlizer {
	tiers := make([]string, 0, len(plans))
	for tier := range plans {
		tiers = append(tiers, string(tier))
	}
	sort.Strings(tiers)

	cond := sq.Or{sq.Eq{"last_checked_at": nil}}
	for _, tier := range tiers {
		cutoff := now.Add(-plans[types.PlanTier(tier)].CheckInterval()).Unix()
		cond = append(cond, sq.And{sq.Eq{"tier": tier}, sq.LtOrEq{"last_checked_at": cutoff}})
	}
	freeCutoff := now.Add(-plans.Lookup(types.TierFree).CheckInterval()).Unix()
	cond = append(cond, sq.And{sq.NotEq{"tier": tiers}, sq.LtOrEq{"last_checked_at": freeCutoff}})
	return cond
}

func (s *sqlStore) selectItems(ctx context.Context, where sq.Sqlizer) ([]types.TrackedItem, error) {
	builder := s.builder.Select(itemColumns...).From("items").OrderBy("created_at", "id")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rs, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rs.Close()

	var items []types.TrackedItem
	for rs.Next() {
		item, err := scanItem(rs)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return items, nil
}

func scanItem(rs rows) (types.TrackedItem, error) {
	var (
		item        types.TrackedItem
		mode, tier  string
		targetPrice *float64
		lastPrice   *float64
		lastStock   *int64
		lastChecked *int64
		createdAt   int64
	)
	err := rs.Scan(&item.ID, &item.OwnerID, &item.URL, &mode, &tier, &targetPrice,
		&item.SelectedVariant, &lastPrice, &lastStock, &lastChecked, &createdAt)
	if err != nil {
		return types.TrackedItem{}, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Mode = types.TrackMode(mode)
	item.Tier = types.PlanTier(tier)
	item.TargetPrice = targetPrice
	item.LastPrice = lastPrice
	if lastStock != nil {
		inStock := *lastStock != 0
		item.LastStock = &inStock
	}
	if lastChecked != nil {
		t := time.Unix(*lastChecked, 0).UTC()
		item.LastCheckedAt = &t
	}
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	return item, nil
}

// UpdateCheckResult records a finished check. A nil price keeps the stored one.
func (s *sqlStore) UpdateCheckResult(ctx context.Context, itemID string, result types.CheckResult) error {
	query, args, err := s.builder.Update("items").
		Set("last_price", sq.Expr("COALESCE(?, last_price)", result.Price)).
		Set("last_stock", stockToInt(&result.Stock)).
		Set("last_checked_at", result.CheckedAt.Unix()).
		Where(sq.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	n, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}
	return nil
}

func (s *sqlStore) GetPlanConfig(ctx context.Context, tier types.PlanTier) (types.PlanConfig, error) {
	return s.plans.Lookup(tier), nil
}

func (s *sqlStore) GetCooldown(ctx context.Context, itemID string, alertType types.AlertType) (*types.CooldownEntry, error) {
	query, args, err := s.builder.Select("last_fired_at", "last_fired_value").
		From("cooldowns").
		Where(sq.Eq{"item_id": itemID, "alert_type": string(alertType)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rs, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cooldown: %w", err)
	}
	defer rs.Close()

	if !rs.Next() {
		return nil, rs.Err()
	}
	var firedAt int64
	entry := types.CooldownEntry{ItemID: itemID, AlertType: alertType}
	if err := rs.Scan(&firedAt, &entry.LastFiredValue); err != nil {
		return nil, fmt.Errorf("failed to scan cooldown: %w", err)
	}
	entry.LastFiredAt = time.Unix(firedAt, 0).UTC()
	return &entry, nil
}

func (s *sqlStore) PutCooldown(ctx context.Context, entry types.CooldownEntry) error {
	query, args, err := s.builder.Insert("cooldowns").
		Columns("item_id", "alert_type", "last_fired_at", "last_fired_value").
		Values(entry.ItemID, string(entry.AlertType), entry.LastFiredAt.Unix(), entry.LastFiredValue).
		Suffix("ON CONFLICT (item_id, alert_type) DO UPDATE SET last_fired_at = excluded.last_fired_at, last_fired_value = excluded.last_fired_value").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	if _, err := s.db.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert cooldown: %w", err)
	}
	return nil
}

func (s *sqlStore) AppendAlert(ctx context.Context, event types.AlertEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	query, args, err := s.builder.Insert("alert_events").
		Columns("id", "owner_id", "item_id", "alert_type", "payload", "created_at").
		Values(event.ID, event.OwnerID, event.ItemID, string(event.AlertType), string(payload), event.Timestamp.Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to append alert %s: %w", event.ID, err)
	}
	return nil
}

func (s *sqlStore) ListAlerts(ctx context.Context, itemID string) ([]types.AlertEvent, error) {
	builder := s.builder.Select("id", "owner_id", "item_id", "alert_type", "payload", "created_at").
		From("alert_events").
		OrderBy("created_at", "id")
	if itemID != "" {
		builder = builder.Where(sq.Eq{"item_id": itemID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rs, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rs.Close()

	var events []types.AlertEvent
	for rs.Next() {
		var (
			event     types.AlertEvent
			alertType string
			payload   string
			createdAt int64
		)
		if err := rs.Scan(&event.ID, &event.OwnerID, &event.ItemID, &alertType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of alert %s: %w", event.ID, err)
		}
		event.AlertType = types.AlertType(alertType)
		event.Timestamp = time.Unix(createdAt, 0).UTC()
		events = append(events, event)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return events, nil
}

func stockToInt(inStock *bool) *int64 {
	if inStock == nil {
		return nil
	}
	var v int64
	if *inStock {
		v = 1
	}
	return &v
}

func timeToUnix(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}
