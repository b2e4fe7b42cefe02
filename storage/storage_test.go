package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricewatch/internal/types"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func timePtr(t time.Time) *time.Time {
	return &t
}

var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore(types.DefaultPlans())
	},
	"sqlite": func(t *testing.T) Store {
		store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pricewatch.db"), types.DefaultPlans())
		require.NoError(t, err)
		return store
	},
}

func forEachStore(t *testing.T, test func(t *testing.T, store Store)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			test(t, store)
		})
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		inserted, err := store.InsertItem(ctx, types.TrackedItem{
			OwnerID:         "owner-1",
			URL:             "https://www.zalando.de/sneaker.html",
			Mode:            types.ModeDeal,
			Tier:            types.TierPro,
			TargetPrice:     floatPtr(59.99),
			SelectedVariant: "42",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, inserted.ID)
		assert.False(t, inserted.CreatedAt.IsZero())

		got, err := store.GetItem(ctx, inserted.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.Equal(t, types.ModeDeal, got.Mode)
		assert.Equal(t, types.TierPro, got.Tier)
		require.NotNil(t, got.TargetPrice)
		assert.Equal(t, 59.99, *got.TargetPrice)
		assert.Equal(t, "42", got.SelectedVariant)
		assert.Nil(t, got.LastPrice)
		assert.Nil(t, got.LastStock)
		assert.Nil(t, got.LastCheckedAt)

		_, err = store.GetItem(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestStore_ListDueItems(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		checked := now.Add(-13 * time.Hour)

		items := []types.TrackedItem{
			{ID: "never", Tier: types.TierFree},
			{ID: "pro-13h", Tier: types.TierPro, LastCheckedAt: timePtr(checked)},
			{ID: "free-13h", Tier: types.TierFree, LastCheckedAt: timePtr(checked)},
			{ID: "ultra-13h", Tier: types.TierUltra, LastCheckedAt: timePtr(checked)},
			{ID: "unknown-13h", Tier: "enterprise", LastCheckedAt: timePtr(checked)},
			{ID: "unknown-25h", Tier: "enterprise", LastCheckedAt: timePtr(now.Add(-25 * time.Hour))},
		}
		for i, item := range items {
			item.OwnerID = "owner"
			item.URL = "https://shop.example/p"
			item.Mode = types.ModeRestock
			item.CreatedAt = now.Add(time.Duration(i) * time.Second)
			_, err := store.InsertItem(ctx, item)
			require.NoError(t, err)
		}

		due, err := store.ListDueItems(ctx, now)
		require.NoError(t, err)

		var ids []string
		for _, item := range due {
			ids = append(ids, item.ID)
		}
		assert.Equal(t, []string{"never", "pro-13h", "ultra-13h", "unknown-25h"}, ids)
	})
}

func TestStore_UpdateCheckResult(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		item, err := store.InsertItem(ctx, types.TrackedItem{OwnerID: "o", URL: "https://shop.example/p", Mode: types.ModeDeal, Tier: types.TierFree})
		require.NoError(t, err)

		first := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpdateCheckResult(ctx, item.ID, types.CheckResult{Price: floatPtr(19.99), Stock: true, CheckedAt: first}))

		got, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 19.99, *got.LastPrice)
		assert.True(t, *got.LastStock)
		assert.True(t, first.Equal(*got.LastCheckedAt))

		// unparsable price keeps the stored one
		second := first.Add(time.Hour)
		require.NoError(t, store.UpdateCheckResult(ctx, item.ID, types.CheckResult{Price: nil, Stock: false, CheckedAt: second}))

		got, err = store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 19.99, *got.LastPrice)
		assert.False(t, *got.LastStock)
		assert.True(t, second.Equal(*got.LastCheckedAt))

		err = store.UpdateCheckResult(ctx, "missing", types.CheckResult{CheckedAt: second})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestStore_Cooldowns(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		entry, err := store.GetCooldown(ctx, "item-1", types.AlertDeal)
		require.NoError(t, err)
		assert.Nil(t, entry)

		firedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, store.PutCooldown(ctx, types.CooldownEntry{ItemID: "item-1", AlertType: types.AlertDeal, LastFiredAt: firedAt, LastFiredValue: 49.99}))
		require.NoError(t, store.PutCooldown(ctx, types.CooldownEntry{ItemID: "item-1", AlertType: types.AlertDeal, LastFiredAt: firedAt.Add(time.Hour), LastFiredValue: 44.99}))

		entry, err = store.GetCooldown(ctx, "item-1", types.AlertDeal)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, 44.99, entry.LastFiredValue)
		assert.True(t, firedAt.Add(time.Hour).Equal(entry.LastFiredAt))

		entry, err = store.GetCooldown(ctx, "item-1", types.AlertRestock)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})
}

func TestStore_Alerts(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		events := []types.AlertEvent{
			{ID: "a1", OwnerID: "o", ItemID: "item-1", AlertType: types.AlertDeal, Timestamp: at,
				Payload: types.AlertPayload{Title: "Sneaker", URL: "https://shop.example/p", Price: 44.99, TargetPrice: floatPtr(50), Channels: []string{"push"}}},
			{ID: "a2", OwnerID: "o", ItemID: "item-2", AlertType: types.AlertRestock, Timestamp: at.Add(time.Minute),
				Payload: types.AlertPayload{Title: "Jacke", InStock: true}},
		}
		for _, event := range events {
			require.NoError(t, store.AppendAlert(ctx, event))
		}

		got, err := store.ListAlerts(ctx, "item-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a1", got[0].ID)
		assert.Equal(t, types.AlertDeal, got[0].AlertType)
		assert.Equal(t, 44.99, got[0].Payload.Price)
		assert.Equal(t, []string{"push"}, got[0].Payload.Channels)
		assert.True(t, at.Equal(got[0].Timestamp))

		all, err := store.ListAlerts(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestStore_DeleteItem(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		item, err := store.InsertItem(ctx, types.TrackedItem{OwnerID: "o", URL: "https://shop.example/p", Mode: types.ModeRestock, Tier: types.TierUltra})
		require.NoError(t, err)
		require.NoError(t, store.PutCooldown(ctx, types.CooldownEntry{ItemID: item.ID, AlertType: types.AlertRestock, LastFiredAt: time.Now(), LastFiredValue: 1}))

		require.NoError(t, store.DeleteItem(ctx, item.ID))

		_, err = store.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		entry, err := store.GetCooldown(ctx, item.ID, types.AlertRestock)
		require.NoError(t, err)
		assert.Nil(t, entry)

		assert.ErrorIs(t, store.DeleteItem(ctx, item.ID), types.ErrNotFound)
	})
}

func TestStore_GetPlanConfig(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		plan, err := store.GetPlanConfig(context.Background(), types.TierUltra)
		require.NoError(t, err)
		assert.Equal(t, 6*time.Hour, plan.CheckInterval())
		assert.True(t, plan.SMSAlerts)

		plan, err = store.GetPlanConfig(context.Background(), "unknown")
		require.NoError(t, err)
		assert.Equal(t, types.TierFree, plan.Tier)
	})
}

func TestOpen(t *testing.T) {
	logger := logrus.New()
	ctx := context.Background()

	store, err := Open(ctx, "", "", nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "db.sqlite"), nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, "mongodb", "", nil, logger)
	assert.Error(t, err)
}
