package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"digitalis/internal/audio"
	"digitalis/internal/auth"
	"digitalis/internal/catalog"
	"digitalis/internal/hub"
	"digitalis/internal/models"
	"digitalis/internal/scheduler"
	"digitalis/internal/sequencer"
	"digitalis/internal/server"
)

func main() {
	dbPath := envOr("DB_PATH", "./data/digitalis.db")
	musicDir := envOr("MUSIC_DIR", "./music")
	listenAddr := envOr("LISTEN_ADDR", ":3000")
	migrationsDir := envOr("MIGRATIONS_DIR", "./migrations")
	corsOrigin := os.Getenv("CORS_ORIGIN")
	accessToken := os.Getenv("ACCESS_TOKEN")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(err)
	}

	store, err := catalog.New(dbPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(migrationsDir); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	guard, err := auth.NewGuard(accessToken)
	if err != nil {
		log.Fatalf("initializing token guard: %v", err)
	}
	if guard.Enabled() {
		log.Println("access token required for API requests")
	} else {
		log.Println("no access token configured — API is open")
	}

	// The observer closure runs on the sequencer worker, after h and bridge
	// are assigned below and before Start admits any command.
	var h *hub.Hub
	var bridge *audio.Bridge
	seq := sequencer.New(store, sequencer.WithObserver(func(t models.Transition) {
		h.Publish(t)
		bridge.OnTransition(t)
	}))
	h = hub.New(seq.Snapshot())

	backend := audio.NewClock()
	bridge = audio.NewBridge(backend, store, seq)

	sch := scheduler.New(catalog.NewScanner(store, musicDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seq.Start(ctx)
	bridge.Start(ctx)
	sch.Start(ctx)

	var opts []server.Option
	if corsOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(corsOrigin))
	}
	opts = append(opts,
		server.WithSequencer(seq),
		server.WithHub(h),
		server.WithScheduler(sch),
		server.WithGuard(guard),
	)
	srv := server.NewServer(store, opts...)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("digitalis listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	sch.Stop()
	bridge.Stop()
	seq.Stop()

	if err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
