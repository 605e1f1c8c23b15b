package store

import (
	"context"
	"fmt"

	intMongo "github.com/retail-ai-inc/savegame/internal/db/mongodb"
	intMySQL "github.com/retail-ai-inc/savegame/internal/db/mysql"
	intPostgres "github.com/retail-ai-inc/savegame/internal/db/postgresql"
	intRedis "github.com/retail-ai-inc/savegame/internal/db/redis"
	"github.com/retail-ai-inc/savegame/pkg/config"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/retail-ai-inc/savegame/pkg/store/file"
	"github.com/retail-ai-inc/savegame/pkg/store/memory"
	"github.com/retail-ai-inc/savegame/pkg/store/mongodb"
	"github.com/retail-ai-inc/savegame/pkg/store/mysql"
	"github.com/retail-ai-inc/savegame/pkg/store/postgresql"
	"github.com/retail-ai-inc/savegame/pkg/store/redis"
	"github.com/sirupsen/logrus"
)

// Open connects the backend named by cfg.Type and, when cfg.AutoMigrate is
// set, creates its index or table.
func Open(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (savegame.Store, error) {
	s, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("store_type", cfg.Type).Info("Opened save store")

	if cfg.AutoMigrate {
		if err := Migrate(ctx, s); err != nil {
			_ = Close(context.Background(), s)
			return nil, err
		}
	}
	return s, nil
}

func open(ctx context.Context, cfg config.StoreConfig, logger *logrus.Logger) (savegame.Store, error) {
	switch cfg.Type {
	case config.StoreMongoDB:
		client, err := intMongo.GetMongoClient(ctx, cfg.Connection, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		coll := client.Database(cfg.Database).Collection(cfg.Collection)
		return mongodb.NewStore(coll, logger), nil
	case config.StoreRedis:
		client, err := intRedis.GetRedisClient(ctx, cfg.Connection, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return redis.NewStore(client, cfg.KeyPrefix, logger), nil
	case config.StorePostgreSQL:
		pool, err := intPostgres.GetPostgreSQLPool(ctx, cfg.Connection, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return postgresql.NewStore(pool, cfg.Table, logger), nil
	case config.StoreMySQL, config.StoreMariaDB:
		db, err := intMySQL.GetMySQLDB(ctx, cfg.Connection, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return mysql.NewStore(db, cfg.Table, logger), nil
	case config.StoreFile:
		return file.NewStore(cfg.Path), nil
	case config.StoreMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// Migrate runs the store's migration if it has one.
func Migrate(ctx context.Context, s savegame.Store) error {
	m, ok := s.(savegame.Migrator)
	if !ok {
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// Close releases the store's connections if it holds any.
func Close(ctx context.Context, s savegame.Store) error {
	if c, ok := s.(savegame.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
