package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/savegame"
)

const fileSuffix = ".json"

// Store keeps one JSON file per owner inside dir. File names are the sha256
// of the owner so arbitrary identities never escape the directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Migrate creates the storage directory.
func (s *Store) Migrate(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create save directory %s: %w", s.dir, err)
	}
	return nil
}

func (s *Store) path(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileSuffix)
}

func (s *Store) FindByOwner(_ context.Context, owner string) ([]savegame.SaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(owner)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []savegame.SaveRecord{rec}, nil
}

func (s *Store) Insert(_ context.Context, rec savegame.SaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(rec.Owner)); err == nil {
		return savegame.ErrDuplicateRecord
	}
	return s.write(rec)
}

func (s *Store) UpdateByOwner(_ context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(owner)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	rec.SaveData = data
	rec.UpdatedAt = updatedAt
	return s.write(rec)
}

// Upsert is atomic with respect to other callers of the same Store.
func (s *Store) Upsert(_ context.Context, owner string, data map[string]any, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(owner)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rec = savegame.SaveRecord{Owner: owner, CreatedAt: now}
	case err != nil:
		return err
	}
	rec.SaveData = data
	rec.UpdatedAt = now
	return s.write(rec)
}

func (s *Store) Count(_ context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileSuffix) {
			n++
		}
	}
	return n, nil
}

func (s *Store) read(owner string) (savegame.SaveRecord, error) {
	var rec savegame.SaveRecord
	data, err := os.ReadFile(s.path(owner))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode save file for %s: %w", owner, err)
	}
	return rec, nil
}

// write goes through a temp file and rename so readers never see a partial
// document.
func (s *Store) write(rec savegame.SaveRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode save record: %w", err)
	}
	path := s.path(rec.Owner)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
