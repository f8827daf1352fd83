package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sketchsync/sketchsync/internal/server"
	"github.com/sketchsync/sketchsync/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		cfg, err = server.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if dsn := cfg.Postgres.DSN; dsn != "" {
		pg, err := store.NewPostgresStore(ctx, dsn, logger)
		if err != nil {
			logger.Fatal("connect store", zap.Error(err))
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("ensure schema", zap.Error(err))
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres backend")
	} else {
		st = store.NewMemoryStore()
		logger.Info("using in-memory backend")
	}

	var notifier store.Notifier
	if cfg.Redis.Addr != "" {
		rn := store.NewRedisNotifier(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		defer func() { _ = rn.Close() }()
		notifier = rn
		logger.Info("redis fan-out enabled", zap.String("addr", cfg.Redis.Addr))
	}

	srv := server.New(cfg, st, notifier, logger)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-stopCh
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
