// Command tminus-scheduler runs internal/scheduler's periodic, cross-user
// recompute jobs: it needs the same actor pool and registry connection as
// tminus-actor, but none of the HTTP surface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tminus/internal/actor"
	"tminus/internal/blobstore"
	"tminus/internal/cache"
	"tminus/internal/config"
	"tminus/internal/logging"
	"tminus/internal/queue"
	"tminus/internal/regstore"
	"tminus/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (overrides CONFIG_FILE)")
	flag.Parse()

	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.InitDefault("tminus-scheduler", cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.Default()

	rootCtx := context.Background()

	if strings.TrimSpace(cfg.Registry.DSN) == "" {
		log.Fatal("REGISTRY_DSN is required: the scheduler fans out over every registered user")
	}
	registry, err := regstore.Open(rootCtx, regstore.Config{
		DSN:             cfg.Registry.DSN,
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxLifeSecs: cfg.Registry.ConnMaxLifeSecs,
	}, cfg.Registry.MigrateOnStart)
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}
	defer registry.Close()

	q := queue.New(queue.Config{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer q.Close()
	blobs := blobstore.New(blobstore.Config{Addr: cfg.Blob.Addr, Password: cfg.Blob.Password, DB: cfg.Blob.DB})
	defer blobs.Close()

	pool := actor.NewPool(cfg.ActorStore.BaseDir, actor.Deps{
		Queue:     q,
		Registry:  registry,
		Blobs:     blobs,
		MasterKey: []byte(strings.TrimSpace(cfg.Security.MasterKey)),
		Logger:    logger,
		Cache:     cache.New(cache.DefaultConfig()),
	})
	defer pool.CloseAll()

	sched := scheduler.New(pool, registry, logger)
	if err := sched.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	logger.Info("tminus-scheduler running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
