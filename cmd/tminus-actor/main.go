// Command tminus-actor is the HTTP dispatch entrypoint: it wires the
// per-user actor pool, the shared registry/blob/queue collaborators, and
// internal/httpapi's single route behind a graceful-shutdown server loop,
// the same flag+signal pattern the teacher's cmd/appserver/main.go uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tminus/internal/actor"
	"tminus/internal/blobstore"
	"tminus/internal/cache"
	"tminus/internal/config"
	"tminus/internal/httpapi"
	"tminus/internal/logging"
	"tminus/internal/metrics"
	"tminus/internal/queue"
	"tminus/internal/ratelimit"
	"tminus/internal/regstore"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	configPath := flag.String("config", "", "path to a YAML configuration file (overrides CONFIG_FILE)")
	flag.Parse()

	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.InitDefault("tminus-actor", cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.Default()

	rootCtx := context.Background()

	q := queue.New(queue.Config{Addr: cfg.Queue.Addr, Password: cfg.Queue.Password, DB: cfg.Queue.DB})
	defer q.Close()

	blobs := blobstore.New(blobstore.Config{Addr: cfg.Blob.Addr, Password: cfg.Blob.Password, DB: cfg.Blob.DB})
	defer blobs.Close()

	var registry *regstore.Store
	if strings.TrimSpace(cfg.Registry.DSN) != "" {
		registry, err = regstore.Open(rootCtx, regstore.Config{
			DSN:             cfg.Registry.DSN,
			MaxOpenConns:    cfg.Registry.MaxOpenConns,
			MaxIdleConns:    cfg.Registry.MaxIdleConns,
			ConnMaxLifeSecs: cfg.Registry.ConnMaxLifeSecs,
		}, cfg.Registry.MigrateOnStart)
		if err != nil {
			log.Fatalf("open registry: %v", err)
		}
		defer registry.Close()
	} else {
		logger.Warn("REGISTRY_DSN not set; deletion workflow and cross-actor fan-out are disabled")
	}

	masterKey := []byte(strings.TrimSpace(cfg.Security.MasterKey))
	if len(masterKey) == 0 {
		logger.Warn("MASTER_KEY not set; deletion certificates will not be signed with a real key")
	}

	pool := actor.NewPool(cfg.ActorStore.BaseDir, actor.Deps{
		Queue:     q,
		Registry:  registry,
		Blobs:     blobs,
		MasterKey: masterKey,
		Logger:    logger,
		Cache:     cache.New(cache.DefaultConfig()),
	})
	defer pool.CloseAll()

	limiter := ratelimit.NewRegistry(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})
	server := httpapi.NewServer(pool, logger, limiter)

	listenAddr := determineAddr(*addr, cfg)
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: metrics.InstrumentHandler(server.Routes()),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()
	logger.Infof("tminus-actor listening on %s", listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if addr := strings.TrimSpace(flagAddr); addr != "" {
		return addr
	}
	if cfg.Server.Port != 0 {
		host := cfg.Server.Host
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	}
	return ":8080"
}
