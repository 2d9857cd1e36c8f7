package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pts.app/internal/auth"
	"pts.app/internal/config"
	"pts.app/internal/directory"
	"pts.app/internal/events"
	"pts.app/internal/httpapi"
	"pts.app/internal/obs"
	"pts.app/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	// Postgres when a DSN is configured, in-memory stores otherwise. The
	// memory stores make local development and smoke testing possible without
	// a database.
	var (
		db        *sql.DB
		authStore auth.Store
		dirStore  directory.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		authStore = pg.NewAuthStore(db)
		dirStore = pg.NewDirectoryStore(db)
	} else {
		log.Println("PTS_PG_DSN not set, using in-memory stores")
		authStore = auth.NewMemoryStore()
		dirStore = directory.NewMemoryStore()
	}

	authOpts := []auth.ServiceOption{
		auth.WithIssuer(cfg.AuthIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	}
	if cfg.AuthSecret != "" {
		authOpts = append(authOpts, auth.WithSecret(cfg.AuthSecret))
	}
	authSvc, err := auth.NewService(authStore, authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if !authSvc.SupportsTokens() {
		log.Println("PTS_AUTH_SECRET not set, token issuance disabled")
	}

	dirSvc, err := directory.NewService(dirStore)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, dirSvc,
		httpapi.WithEvents(events.New()))

	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), cfg.RateBurst, cfg.RatePerSec),
						1<<20)))))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting pts-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
