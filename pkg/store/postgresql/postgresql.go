package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTable = "save_records"

	uniqueViolation = "23505"
)

// Store keeps save records in a table keyed by owner with the payload in a
// JSONB column.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	logger *logrus.Logger
}

func NewStore(pool *pgxpool.Pool, table string, logger *logrus.Logger) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	owner      TEXT PRIMARY KEY,
	save_data  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.logger.Infof("Ensured table %s", s.table)
	return nil
}

func (s *Store) FindByOwner(ctx context.Context, owner string) ([]savegame.SaveRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT owner, save_data, created_at, updated_at FROM %s WHERE owner = $1`, s.table), owner)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (savegame.SaveRecord, error) {
		var rec savegame.SaveRecord
		err := row.Scan(&rec.Owner, &rec.SaveData, &rec.CreatedAt, &rec.UpdatedAt)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		return rec, err
	})
}

func (s *Store) Insert(ctx context.Context, rec savegame.SaveRecord) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (owner, save_data, created_at, updated_at) VALUES ($1, $2, $3, $4)`, s.table),
		rec.Owner, rec.SaveData, rec.CreatedAt, rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return savegame.ErrDuplicateRecord
	}
	return err
}

func (s *Store) UpdateByOwner(ctx context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET save_data = $2, updated_at = $3 WHERE owner = $1`, s.table),
		owner, data, updatedAt)
	return err
}

func (s *Store) Upsert(ctx context.Context, owner string, data map[string]any, now time.Time) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (owner, save_data, created_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (owner) DO UPDATE SET save_data = EXCLUDED.save_data, updated_at = EXCLUDED.updated_at`, s.table),
		owner, data, now)
	return err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
