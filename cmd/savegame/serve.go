package main

import (
	"context"
	"fmt"
	"net"

	"github.com/retail-ai-inc/savegame/pkg/identity"
	"github.com/retail-ai-inc/savegame/pkg/logger"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/retail-ai-inc/savegame/pkg/server"
	"github.com/retail-ai-inc/savegame/pkg/store"
	"github.com/retail-ai-inc/savegame/pkg/tracing"
	"github.com/retail-ai-inc/savegame/pkg/utils"
)

func serve(ctx context.Context, flags *flagConfig) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.WithError(err).Error("Failed to flush traces")
		}
	}()

	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background(), st); err != nil {
			log.WithError(err).Error("Failed to close store")
		}
	}()

	if cfg.Monitor.EnableRecordCount {
		if counter, ok := st.(savegame.Counter); ok {
			utils.StartRecordCountMonitoring(ctx, counter, cfg.Store.Type, log, cfg.Monitor.Interval)
		} else {
			log.Warnf("Record count monitoring not supported by store type %s", cfg.Store.Type)
		}
	}

	srv := server.NewServer(log, server.ServerConfig{
		EnableRequestLogging: cfg.EnableRequestLogging,
	}, &server.Handlers{
		Service:  savegame.NewService(st, log),
		Resolver: identity.FromConfig(cfg.Identity, log),
		Logger:   log,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddress, err)
	}
	if err := srv.Start(ctx, ln); err != nil {
		return err
	}
	log.Info("Program has exited")
	return nil
}

func migrate(ctx context.Context, flags *flagConfig) error {
	cfg, err := flags.load()
	if err != nil {
		return err
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	cfg.Store.AutoMigrate = false
	st, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background(), st)

	if err := store.Migrate(ctx, st); err != nil {
		return err
	}
	log.WithField("store_type", cfg.Store.Type).Info("Store migrated")
	return nil
}
