// Package memory is a process-local document store. Upsert runs under the
// store's lock, so concurrent first saves for one owner leave one record.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/savegame"
)

type Store struct {
	mu      sync.RWMutex
	records []savegame.SaveRecord
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) FindByOwner(_ context.Context, owner string) ([]savegame.SaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []savegame.SaveRecord
	for _, rec := range s.records {
		if rec.Owner == owner {
			rec.SaveData = cloneObject(rec.SaveData)
			out = append(out, rec)
		}
	}
	return out, nil
}

// Insert appends rec. Like a collection without a unique index it does not
// reject a second record for the same owner.
func (s *Store) Insert(_ context.Context, rec savegame.SaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.SaveData = cloneObject(rec.SaveData)
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) UpdateByOwner(_ context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Owner == owner {
			s.records[i].SaveData = cloneObject(data)
			s.records[i].UpdatedAt = updatedAt
		}
	}
	return nil
}

// Upsert replaces the owner's saveData and updatedAt, or appends a new record
// stamped with now when the owner has none.
func (s *Store) Upsert(_ context.Context, owner string, data map[string]any, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.records {
		if s.records[i].Owner == owner {
			s.records[i].SaveData = cloneObject(data)
			s.records[i].UpdatedAt = now
			found = true
		}
	}
	if !found {
		s.records = append(s.records, savegame.SaveRecord{
			Owner:     owner,
			SaveData:  cloneObject(data),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func cloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
