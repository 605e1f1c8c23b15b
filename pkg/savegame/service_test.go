package savegame_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/retail-ai-inc/savegame/pkg/store/memory"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// fakeStore records calls and returns canned errors.
type fakeStore struct {
	records   []savegame.SaveRecord
	findErr   error
	insertErr error
	updateErr error
	calls     int
}

func (f *fakeStore) FindByOwner(_ context.Context, owner string) ([]savegame.SaveRecord, error) {
	f.calls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []savegame.SaveRecord
	for _, r := range f.records {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, rec savegame.SaveRecord) error {
	f.calls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) UpdateByOwner(_ context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	f.calls++
	return f.updateErr
}

type fakeUpserter struct {
	fakeStore
	upserts   int
	upsertErr error
}

func (f *fakeUpserter) Upsert(_ context.Context, owner string, data map[string]any, now time.Time) error {
	f.upserts++
	return f.upsertErr
}

// primitivesOnly hides any Upsert method of the wrapped store so the service
// takes the query-then-write path.
type primitivesOnly struct {
	savegame.Store
}

// backends returns a fresh store for each save path.
func backends() map[string]func() savegame.Store {
	return map[string]func() savegame.Store{
		"upsert":           func() savegame.Store { return memory.NewStore() },
		"query then write": func() savegame.Store { return primitivesOnly{memory.NewStore()} },
	}
}

func TestLoad_NoIdentity(t *testing.T) {
	store := &fakeStore{}
	svc := savegame.NewService(store, testLogger())

	resp := svc.Load(context.Background(), "")

	assert.Equal(t, savegame.CodeFail, resp.Code)
	assert.Equal(t, "no identity", resp.Msg)
	assert.Zero(t, store.calls)
}

func TestLoad_NeverSaved(t *testing.T) {
	svc := savegame.NewService(memory.NewStore(), testLogger())

	resp := svc.Load(context.Background(), "never-saved-user")

	assert.Equal(t, savegame.LoadResponse{Code: 0, Msg: "no save found"}, resp)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":0,"saveData":null,"msg":"no save found"}`, string(body))
}

func TestSave_NoIdentity(t *testing.T) {
	for _, data := range []any{nil, "x", map[string]any{"level": 3}} {
		store := &fakeStore{}
		svc := savegame.NewService(store, testLogger())

		resp := svc.Save(context.Background(), "", data)

		assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "no identity"}, resp)
		assert.Zero(t, store.calls)
	}
}

func TestSave_InvalidData(t *testing.T) {
	var nilMap map[string]any
	for name, data := range map[string]any{
		"nil":     nil,
		"string":  "not-an-object",
		"number":  float64(3),
		"array":   []any{"a"},
		"nil map": nilMap,
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			svc := savegame.NewService(store, testLogger())

			resp := svc.Save(context.Background(), "u1", data)

			assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "invalid data"}, resp)
			assert.Zero(t, store.calls)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
			svc := savegame.NewService(newStore(), testLogger(), savegame.WithClock(func() time.Time { return clock }))

			resp := svc.Save(ctx, "u1", map[string]any{"level": float64(3)})
			assert.Equal(t, savegame.SaveResponse{Code: 0, Msg: "ok"}, resp)

			loaded := svc.Load(ctx, "u1")
			assert.Equal(t, 0, loaded.Code)
			assert.Equal(t, map[string]any{"level": float64(3)}, loaded.SaveData)
			require.NotNil(t, loaded.UpdatedAt)
			assert.True(t, clock.Equal(*loaded.UpdatedAt))
			assert.Empty(t, loaded.Msg)

			clock = clock.Add(time.Minute)
			resp = svc.Save(ctx, "u1", map[string]any{"level": float64(5)})
			assert.Equal(t, savegame.SaveResponse{Code: 0, Msg: "ok"}, resp)

			loaded = svc.Load(ctx, "u1")
			assert.Equal(t, map[string]any{"level": float64(5)}, loaded.SaveData, "save replaces, never merges")
			assert.True(t, clock.Equal(*loaded.UpdatedAt))
		})
	}
}

func TestSave_Idempotent(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			svc := savegame.NewService(store, testLogger(), savegame.WithClock(func() time.Time { return clock }))
			payload := map[string]any{"level": float64(3), "items": []any{"potion"}}

			require.Equal(t, 0, svc.Save(ctx, "u1", payload).Code)
			clock = clock.Add(time.Hour)
			require.Equal(t, 0, svc.Save(ctx, "u1", payload).Code)

			records, err := store.FindByOwner(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "u1", records[0].Owner)
			assert.Equal(t, payload, records[0].SaveData)
			assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), records[0].CreatedAt)
			assert.Equal(t, clock, records[0].UpdatedAt)
		})
	}
}

func TestSave_ConcurrentFirstSavesKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := savegame.NewService(store, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			assert.Equal(t, 0, svc.Save(ctx, "u1", map[string]any{"level": float64(level)}).Code)
		}(i)
	}
	wg.Wait()

	records, err := store.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSave_IsolatesOwners(t *testing.T) {
	ctx := context.Background()
	svc := savegame.NewService(memory.NewStore(), testLogger())

	require.Equal(t, 0, svc.Save(ctx, "u1", map[string]any{"level": float64(1)}).Code)
	require.Equal(t, 0, svc.Save(ctx, "u2", map[string]any{"level": float64(2)}).Code)

	assert.Equal(t, map[string]any{"level": float64(1)}, svc.Load(ctx, "u1").SaveData)
	assert.Equal(t, map[string]any{"level": float64(2)}, svc.Load(ctx, "u2").SaveData)
}

func TestStoreFaults(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset by peer")

	t.Run("load query", func(t *testing.T) {
		svc := savegame.NewService(&fakeStore{findErr: boom}, testLogger())
		resp := svc.Load(ctx, "u1")
		assert.Equal(t, savegame.LoadResponse{Code: -1, Msg: "connection reset by peer"}, resp)
	})

	t.Run("save query", func(t *testing.T) {
		svc := savegame.NewService(&fakeStore{findErr: boom}, testLogger())
		resp := svc.Save(ctx, "u1", map[string]any{})
		assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "connection reset by peer"}, resp)
	})

	t.Run("save insert", func(t *testing.T) {
		svc := savegame.NewService(&fakeStore{insertErr: boom}, testLogger())
		resp := svc.Save(ctx, "u1", map[string]any{})
		assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "connection reset by peer"}, resp)
	})

	t.Run("save update", func(t *testing.T) {
		store := &fakeStore{
			records:   []savegame.SaveRecord{{Owner: "u1"}},
			updateErr: boom,
		}
		svc := savegame.NewService(store, testLogger())
		resp := svc.Save(ctx, "u1", map[string]any{})
		assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "connection reset by peer"}, resp)
	})

	t.Run("save upsert", func(t *testing.T) {
		svc := savegame.NewService(&fakeUpserter{upsertErr: boom}, testLogger())
		resp := svc.Save(ctx, "u1", map[string]any{})
		assert.Equal(t, savegame.SaveResponse{Code: -1, Msg: "connection reset by peer"}, resp)
	})
}

func TestSave_PrefersUpsert(t *testing.T) {
	store := &fakeUpserter{}
	svc := savegame.NewService(store, testLogger())

	resp := svc.Save(context.Background(), "u1", map[string]any{"level": float64(3)})

	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, 1, store.upserts)
	assert.Zero(t, store.calls, "query-then-write path must not run")
}

func TestLoad_DuplicateRecordsReturnsFirst(t *testing.T) {
	updated := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{records: []savegame.SaveRecord{
		{Owner: "u1", SaveData: map[string]any{"level": float64(1)}, UpdatedAt: updated},
		{Owner: "u1", SaveData: map[string]any{"level": float64(2)}},
	}}
	svc := savegame.NewService(store, testLogger())

	resp := svc.Load(context.Background(), "u1")

	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, map[string]any{"level": float64(1)}, resp.SaveData)
	assert.Equal(t, updated, *resp.UpdatedAt)
}
