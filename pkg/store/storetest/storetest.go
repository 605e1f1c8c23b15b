// Package storetest holds the behaviour every savegame.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store. Owners are random so a shared database can be reused
// between runs.
func Run(t *testing.T, store savegame.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	newOwner := func() string { return "storetest-" + uuid.NewString() }

	t.Run("find missing owner", func(t *testing.T) {
		got, err := store.FindByOwner(ctx, newOwner())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("insert then find", func(t *testing.T) {
		owner := newOwner()
		data := map[string]any{
			"level":     float64(3),
			"name":      "hero",
			"inventory": []any{"sword", "shield"},
			"position":  map[string]any{"x": 1.5, "y": float64(-2)},
		}
		require.NoError(t, store.Insert(ctx, savegame.SaveRecord{
			Owner:     owner,
			SaveData:  data,
			CreatedAt: now,
			UpdatedAt: now,
		}))

		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, owner, got[0].Owner)
		assert.Equal(t, data, got[0].SaveData)
		assert.True(t, now.Equal(got[0].CreatedAt), "createdAt %s != %s", got[0].CreatedAt, now)
		assert.True(t, now.Equal(got[0].UpdatedAt), "updatedAt %s != %s", got[0].UpdatedAt, now)
	})

	t.Run("update replaces data and keeps createdAt", func(t *testing.T) {
		owner := newOwner()
		require.NoError(t, store.Insert(ctx, savegame.SaveRecord{
			Owner:     owner,
			SaveData:  map[string]any{"level": float64(3), "gold": float64(10)},
			CreatedAt: now,
			UpdatedAt: now,
		}))

		later := now.Add(time.Minute)
		require.NoError(t, store.UpdateByOwner(ctx, owner, map[string]any{"level": float64(5)}, later))

		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, map[string]any{"level": float64(5)}, got[0].SaveData)
		assert.True(t, now.Equal(got[0].CreatedAt))
		assert.True(t, later.Equal(got[0].UpdatedAt))
	})

	t.Run("owner match is exact", func(t *testing.T) {
		owner := "storetest-Ab-" + uuid.NewString()
		require.NoError(t, store.Insert(ctx, savegame.SaveRecord{
			Owner:     owner,
			SaveData:  map[string]any{"level": float64(1)},
			CreatedAt: now,
			UpdatedAt: now,
		}))

		got, err := store.FindByOwner(ctx, strings.ToLower(owner))
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = store.FindByOwner(ctx, strings.ToUpper(owner))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("update of missing owner creates nothing", func(t *testing.T) {
		owner := newOwner()
		require.NoError(t, store.UpdateByOwner(ctx, owner, map[string]any{"level": float64(1)}, now))

		got, err := store.FindByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	if u, ok := store.(savegame.Upserter); ok {
		t.Run("upsert inserts then replaces", func(t *testing.T) {
			owner := newOwner()
			require.NoError(t, u.Upsert(ctx, owner, map[string]any{"level": float64(3)}, now))

			later := now.Add(time.Hour)
			require.NoError(t, u.Upsert(ctx, owner, map[string]any{"level": float64(5)}, later))

			got, err := store.FindByOwner(ctx, owner)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, map[string]any{"level": float64(5)}, got[0].SaveData)
			assert.True(t, now.Equal(got[0].CreatedAt), "createdAt moved to %s", got[0].CreatedAt)
			assert.True(t, later.Equal(got[0].UpdatedAt))
		})
	}

	if u, ok := store.(savegame.Upserter); ok {
		t.Run("upsert keeps owners differing in case apart", func(t *testing.T) {
			lower := "storetest-ab-" + uuid.NewString()
			upper := strings.ToUpper(lower)
			require.NoError(t, u.Upsert(ctx, lower, map[string]any{"level": float64(1)}, now))
			require.NoError(t, u.Upsert(ctx, upper, map[string]any{"level": float64(9)}, now))

			got, err := store.FindByOwner(ctx, lower)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, lower, got[0].Owner)
			assert.Equal(t, map[string]any{"level": float64(1)}, got[0].SaveData)

			got, err = store.FindByOwner(ctx, upper)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, map[string]any{"level": float64(9)}, got[0].SaveData)
		})
	}

	if c, ok := store.(savegame.Counter); ok {
		t.Run("count grows with inserts", func(t *testing.T) {
			before, err := c.Count(ctx)
			require.NoError(t, err)

			require.NoError(t, store.Insert(ctx, savegame.SaveRecord{
				Owner:     newOwner(),
				SaveData:  map[string]any{},
				CreatedAt: now,
				UpdatedAt: now,
			}))

			after, err := c.Count(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, after, before+1)
		})
	}
}
