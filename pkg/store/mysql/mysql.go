package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTable = "save_records"

	errDuplicateEntry = 1062
)

// Store keeps save records in a MySQL or MariaDB table with the payload in a
// JSON column. The handle must be opened with parseTime enabled.
type Store struct {
	db     *sql.DB
	table  string
	logger *logrus.Logger
}

func NewStore(db *sql.DB, table string, logger *logrus.Logger) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: quoteIdent(table), logger: logger}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// createTableSQL pins owner to a binary collation. The server default
// (utf8mb4_0900_ai_ci, utf8mb4_general_ci on MariaDB) would match "u1"
// against "U1" and merge two callers into one row.
func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	owner      VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL PRIMARY KEY,
	save_data  JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`, s.table)
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.createTableSQL())
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.logger.Infof("Ensured table %s", s.table)
	return nil
}

func (s *Store) FindByOwner(ctx context.Context, owner string) ([]savegame.SaveRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT owner, save_data, created_at, updated_at FROM %s WHERE owner = ?", s.table), owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []savegame.SaveRecord
	for rows.Next() {
		var (
			rec savegame.SaveRecord
			raw []byte
		)
		if err := rows.Scan(&rec.Owner, &raw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.SaveData); err != nil {
			return nil, fmt.Errorf("decode save_data for %s: %w", owner, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Insert(ctx context.Context, rec savegame.SaveRecord) error {
	data, err := json.Marshal(rec.SaveData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (owner, save_data, created_at, updated_at) VALUES (?, ?, ?, ?)", s.table),
		rec.Owner, data, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return savegame.ErrDuplicateRecord
	}
	return err
}

func (s *Store) UpdateByOwner(ctx context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET save_data = ?, updated_at = ? WHERE owner = ?", s.table),
		encoded, updatedAt.UTC(), owner)
	return err
}

func (s *Store) Upsert(ctx context.Context, owner string, data map[string]any, now time.Time) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ts := now.UTC()
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (owner, save_data, created_at, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE save_data = VALUES(save_data), updated_at = VALUES(updated_at)`, s.table),
		owner, encoded, ts, ts)
	return err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n)
	return n, err
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}
