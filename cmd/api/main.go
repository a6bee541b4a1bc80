package main

import (
	"context"
	"fmt"
	"log"

	"hiive-relay/config"
	"hiive-relay/internal/credentials"
	"hiive-relay/internal/event"
	"hiive-relay/internal/listeners"
	"hiive-relay/internal/manager"
	"hiive-relay/internal/repository"
	"hiive-relay/internal/server"
	"hiive-relay/internal/transport"
	"hiive-relay/pkg/database"
	"hiive-relay/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	// Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := repository.InitSchema(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	dbVersion, err := repository.ServerVersion(ctx, db)
	if err != nil {
		l.Warnf("could not resolve database version: %s", err)
	}
	env := event.NewEnvironment(cfg.SiteURL, dbVersion, cfg.AppMode, cfg.RelayVersion)

	// Credential store in Redis so overlapping processes share the token.
	redisClient := credentials.NewRedisClient(credentials.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	creds := credentials.NewRedisStore(redisClient)

	var deliverer transport.Deliverer = transport.NewHiiveConnection(cfg.HiiveBaseURL, env, creds, l)
	if cfg.AppMode == logger.DevelopmentMode && cfg.HiiveBaseURL == "" {
		deliverer = transport.NewDebugSink(l)
	}

	q := repository.NewQueueRepository(db)
	opts := manager.Options{
		BatchSize:     cfg.BatchSize,
		AttemptsLimit: cfg.AttemptsLimit,
		SyncTimeout:   cfg.SyncTimeout,
		BatchTimeout:  cfg.BatchTimeout,
		LeaseTTL:      cfg.LeaseTTL,
		DeferredKeys:  cfg.DeferredKeys,
	}

	// Background flusher for the durable queue.
	flusher := manager.New(q, deliverer, l, opts)
	runner := manager.NewRunner(flusher, cfg.FlushInterval)
	runner.Start()
	defer runner.Stop()

	registry := listeners.NewRegistry(listeners.Defaults())
	newMgr := func() *manager.Manager {
		return manager.New(q, deliverer, l, opts)
	}

	srv := server.New(cfg, l, registry, newMgr, q, env, db)
	r := srv.Router()

	l.Infof("starting relay on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
