package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricewatch/internal/types"

	"github.com/google/uuid"
)

type cooldownKey struct {
	itemID    string
	alertType types.AlertType
}

// MemoryStore keeps everything in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	plans     types.PlanTable
	items     map[string]types.TrackedItem
	order     []string
	cooldowns map[cooldownKey]types.CooldownEntry
	alerts    []types.AlertEvent
}

// NewMemoryStore creates an empty store using plans for due computation
func NewMemoryStore(plans types.PlanTable) *MemoryStore {
	if len(plans) == 0 {
		plans = types.DefaultPlans()
	}
	return &MemoryStore{
		plans:     plans,
		items:     make(map[string]types.TrackedItem),
		cooldowns: make(map[cooldownKey]types.CooldownEntry),
	}
}

// InsertItem stores item, assigning an ID and creation time when missing
func (m *MemoryStore) InsertItem(ctx context.Context, item types.TrackedItem) (types.TrackedItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[item.ID]; exists {
		return types.TrackedItem{}, fmt.Errorf("item %s already exists", item.ID)
	}
	m.items[item.ID] = cloneItem(item)
	m.order = append(m.order, item.ID)
	return cloneItem(item), nil
}

func (m *MemoryStore) GetItem(ctx context.Context, itemID string) (*types.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}
	item = cloneItem(item)
	return &item, nil
}

func (m *MemoryStore) ListItems(ctx context.Context) ([]types.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]types.TrackedItem, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, cloneItem(m.items[id]))
	}
	return items, nil
}

func (m *MemoryStore) DeleteItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}
	delete(m.items, itemID)
	for i, id := range m.order {
		if id == itemID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for key := range m.cooldowns {
		if key.itemID == itemID {
			delete(m.cooldowns, key)
		}
	}
	return nil
}

// ListDueItems returns items never checked or whose plan interval has elapsed
func (m *MemoryStore) ListDueItems(ctx context.Context, now time.Time) ([]types.TrackedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []types.TrackedItem
	for _, id := range m.order {
		item := m.items[id]
		if item.LastCheckedAt == nil || now.Sub(*item.LastCheckedAt) >= m.plans.Lookup(item.Tier).CheckInterval() {
			due = append(due, cloneItem(item))
		}
	}
	return due, nil
}

// UpdateCheckResult records a finished check. A nil price keeps the stored one.
func (m *MemoryStore) UpdateCheckResult(ctx context.Context, itemID string, result types.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, types.ErrNotFound)
	}
	if result.Price != nil {
		p := *result.Price
		item.LastPrice = &p
	}
	stock := result.Stock
	checkedAt := result.CheckedAt
	item.LastStock = &stock
	item.LastCheckedAt = &checkedAt
	m.items[itemID] = item
	return nil
}

func (m *MemoryStore) GetPlanConfig(ctx context.Context, tier types.PlanTier) (types.PlanConfig, error) {
	return m.plans.Lookup(tier), nil
}

func (m *MemoryStore) GetCooldown(ctx context.Context, itemID string, alertType types.AlertType) (*types.CooldownEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cooldowns[cooldownKey{itemID, alertType}]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *MemoryStore) PutCooldown(ctx context.Context, entry types.CooldownEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[cooldownKey{entry.ItemID, entry.AlertType}] = entry
	return nil
}

func (m *MemoryStore) AppendAlert(ctx context.Context, event types.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, event)
	return nil
}

// ListAlerts returns the alerts of itemID in append order, or all alerts when
// itemID is empty
func (m *MemoryStore) ListAlerts(ctx context.Context, itemID string) ([]types.AlertEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []types.AlertEvent
	for _, event := range m.alerts {
		if itemID == "" || event.ItemID == itemID {
			events = append(events, event)
		}
	}
	return events, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneItem(item types.TrackedItem) types.TrackedItem {
	if item.TargetPrice != nil {
		v := *item.TargetPrice
		item.TargetPrice = &v
	}
	if item.LastPrice != nil {
		v := *item.LastPrice
		item.LastPrice = &v
	}
	if item.LastStock != nil {
		v := *item.LastStock
		item.LastStock = &v
	}
	if item.LastCheckedAt != nil {
		v := *item.LastCheckedAt
		item.LastCheckedAt = &v
	}
	return item
}
