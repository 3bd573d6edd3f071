package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/capture"
	"github.com/herdworks/fieldsync/internal/agent/connectivity"
	"github.com/herdworks/fieldsync/internal/agent/shell"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/agent/syncer"
	"github.com/herdworks/fieldsync/internal/config"
	"github.com/herdworks/fieldsync/internal/database"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Local durable state
	db, err := database.NewSQLite(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open local database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate local database: %v", err)
	}

	queue := store.NewQueue(db)
	cache := store.NewCache(db)

	client := api.NewClient(cfg.ServerURL, cfg.APIToken)

	// Connectivity: probe the server's health endpoint, flip on real failures
	monitor := connectivity.NewMonitor(connectivity.ProberFunc(client.Health), cfg.ProbeInterval)

	captureService := capture.NewService(client, queue, cache, monitor)

	// Refresh the local herd cache whenever the device comes back online, so
	// the next offline stretch resolves against fresh identities.
	monitor.Subscribe(func(t connectivity.Transition) {
		if t.Mode != connectivity.Online {
			return
		}
		go func() {
			if err := captureService.RefreshHerd(context.Background()); err != nil {
				log.Printf("Herd cache refresh failed: %v", err)
			}
		}()
	})

	// Sync: drain the queue on reconnect (debounced) and on a steady interval
	reconciler := syncer.NewReconciler(queue, client, monitor)
	scheduler := syncer.NewScheduler(reconciler, monitor, cfg.SyncDebounce, cfg.SyncInterval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	monitor.Start(ctx)
	defer monitor.Stop()

	// App shell: install the current asset generation, then serve it
	// network-first on the local port
	manifest, err := shell.LoadManifest(cfg.ManifestPath)
	if err != nil {
		log.Fatalf("Failed to load shell manifest: %v", err)
	}
	interceptor := shell.NewInterceptor(cfg.ServerURL, cfg.DataDir+"/shell", manifest)
	if err := interceptor.Install(ctx); err != nil {
		// Offline start is fine as long as a previous generation is installed.
		log.Printf("Shell install failed, serving previous generation if any: %v", err)
	}

	// Local surface: device UI routes first, shell proxy for everything else
	router := chi.NewRouter()
	router.Mount("/device", capture.Handler(captureService, queue))
	router.Mount("/", interceptor.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ShellPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down agent...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting agent shell on port %s (server %s)", cfg.ShellPort, cfg.ServerURL)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Agent error: %v", err)
	}

	log.Println("Agent stopped gracefully")
}
