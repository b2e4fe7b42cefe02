package monitor

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/types"
)

// CooldownStore persists the last fired alert per (item, alert type)
type CooldownStore interface {
	// GetCooldown returns nil without error when no entry exists
	GetCooldown(ctx context.Context, itemID string, alertType types.AlertType) (*types.CooldownEntry, error)
	PutCooldown(ctx context.Context, entry types.CooldownEntry) error
}

// Gate suppresses repeated alerts inside the cooldown window unless the new
// value strictly improves on the last fired one
type Gate struct {
	store  CooldownStore
	window time.Duration
}

// NewGate creates a cooldown gate
func NewGate(store CooldownStore, window time.Duration) *Gate {
	return &Gate{store: store, window: window}
}

// Allow reports whether an alert with value may be dispatched at now
func (g *Gate) Allow(ctx context.Context, itemID string, alertType types.AlertType, value float64, now time.Time) (bool, error) {
	entry, err := g.store.GetCooldown(ctx, itemID, alertType)
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown for %s/%s: %w", itemID, alertType, err)
	}
	if entry == nil {
		return true, nil
	}
	if now.Sub(entry.LastFiredAt) >= g.window {
		return true, nil
	}
	return improves(alertType, value, entry.LastFiredValue), nil
}

// Record upserts the cooldown entry after a dispatch
func (g *Gate) Record(ctx context.Context, itemID string, alertType types.AlertType, value float64, now time.Time) error {
	err := g.store.PutCooldown(ctx, types.CooldownEntry{
		ItemID:         itemID,
		AlertType:      alertType,
		LastFiredAt:    now,
		LastFiredValue: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write cooldown for %s/%s: %w", itemID, alertType, err)
	}
	return nil
}

// Rearm marks the next restock as a fresh transition. It is called when an
// item is seen going out of stock; the fired-at time is kept.
func (g *Gate) Rearm(ctx context.Context, itemID string) error {
	entry, err := g.store.GetCooldown(ctx, itemID, types.AlertRestock)
	if err != nil {
		return fmt.Errorf("failed to read cooldown for %s/%s: %w", itemID, types.AlertRestock, err)
	}
	if entry == nil || entry.LastFiredValue == restockRearmed {
		return nil
	}
	entry.LastFiredValue = restockRearmed
	return g.store.PutCooldown(ctx, *entry)
}

// Restock alerts carry restockFired; a rearmed entry holds restockRearmed
const (
	restockFired   = 1.0
	restockRearmed = 0.0
)

// improves: deals improve with a strictly lower price, restocks with a
// higher value, which only a rearmed entry allows
func improves(alertType types.AlertType, value, last float64) bool {
	switch alertType {
	case types.AlertDeal:
		return value < last
	case types.AlertRestock:
		return value > last
	}
	return false
}
