package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
)

const (
	DefaultKeyPrefix = "savegame:"

	fieldOwner     = "owner"
	fieldSaveData  = "saveData"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"

	scanBatchSize = 100
)

// Store keeps each save record in a hash at <prefix><owner>. The key itself
// is the uniqueness constraint on owner.
type Store struct {
	client goredis.UniversalClient
	prefix string
	logger *logrus.Logger
}

func NewStore(client goredis.UniversalClient, prefix string, logger *logrus.Logger) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(owner string) string {
	return s.prefix + owner
}

func (s *Store) FindByOwner(ctx context.Context, owner string) ([]savegame.SaveRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(owner)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec, err := decodeRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("decode save record %s: %w", s.key(owner), err)
	}
	return []savegame.SaveRecord{rec}, nil
}

func (s *Store) Insert(ctx context.Context, rec savegame.SaveRecord) error {
	data, err := json.Marshal(rec.SaveData)
	if err != nil {
		return err
	}
	key := s.key(rec.Owner)
	return s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return savegame.ErrDuplicateRecord
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldOwner, rec.Owner,
				fieldSaveData, data,
				fieldCreatedAt, formatTime(rec.CreatedAt),
				fieldUpdatedAt, formatTime(rec.UpdatedAt),
			)
			return nil
		})
		return err
	}, key)
}

// UpdateByOwner only touches an existing hash; the WATCH aborts the write if
// the key changes between the existence check and EXEC.
func (s *Store) UpdateByOwner(ctx context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	key := s.key(owner)
	return s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldSaveData, encoded, fieldUpdatedAt, formatTime(updatedAt))
			return nil
		})
		return err
	}, key)
}

// Upsert runs in one MULTI/EXEC: HSETNX keeps owner and createdAt from the
// first write, HSET replaces the payload.
func (s *Store) Upsert(ctx context.Context, owner string, data map[string]any, now time.Time) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	key := s.key(owner)
	ts := formatTime(now)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldOwner, owner)
		pipe.HSetNX(ctx, key, fieldCreatedAt, ts)
		pipe.HSet(ctx, key, fieldSaveData, encoded, fieldUpdatedAt, ts)
		return nil
	})
	return err
}

// Count scans the key space for the store prefix.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatchSize).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Warnf("[Redis] SCAN got context canceled: %v", err)
			}
			return 0, err
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

func decodeRecord(fields map[string]string) (savegame.SaveRecord, error) {
	rec := savegame.SaveRecord{Owner: fields[fieldOwner]}
	if raw, ok := fields[fieldSaveData]; ok {
		if err := json.Unmarshal([]byte(raw), &rec.SaveData); err != nil {
			return rec, err
		}
	}
	var err error
	if rec.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(fields[fieldUpdatedAt]); err != nil {
		return rec, err
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
