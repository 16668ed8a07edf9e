// cmd/api/main.go
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"composer-backend/internal/gateway"
	"composer-backend/internal/handler"
	"composer-backend/internal/logging"
)

func main() {
	// Load .env in dev only — production injects env vars through infra.
	if os.Getenv("APP_ENV") != "production" {
		godotenv.Load()
	}

	log, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// ── Persistence (swappable: SQLite locally, Postgres in deployments) ──────
	// Infra sets PERSISTENCE_DRIVER=postgres and DATABASE_URL when ready.
	// Session and handler code never changes — only this wiring changes.
	var (
		gw   gateway.Gateway
		pgDB *sql.DB
	)
	switch os.Getenv("PERSISTENCE_DRIVER") {
	case "postgres":
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			log.Fatal("DATABASE_URL is required with PERSISTENCE_DRIVER=postgres")
		}

		pgDB, err = sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalw("failed to open database", "error", err)
		}
		defer pgDB.Close()

		// Connection pool — prevents overwhelming the DB under concurrent load.
		pgDB.SetMaxOpenConns(25)
		pgDB.SetMaxIdleConns(5)
		pgDB.SetConnMaxLifetime(5 * time.Minute)

		// Verify the connection at startup — fail fast rather than accepting traffic.
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()
		if err := pgDB.PingContext(pingCtx); err != nil {
			log.Fatalw("database ping failed", "error", err)
		}

		gw = gateway.NewPostgres(pgDB)
		log.Info("using postgres persistence")
	default:
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "./data/composer.db"
		}
		sqliteGW, err := gateway.OpenSQLite(path)
		if err != nil {
			log.Fatalw("failed to open sqlite database", "path", path, "error", err)
		}
		defer sqliteGW.Close()
		gw = sqliteGW
		log.Infow("using sqlite persistence", "path", path)
	}

	// Offline fallback keeps the editor usable when a fetch fails; placeholder
	// payloads are flagged so clients can tell them apart from server data.
	gw = gateway.NewOfflineFallback(gw, log)

	// ── Router ────────────────────────────────────────────────────────────────
	r := mux.NewRouter()

	// Health check — required by load balancers and liveness probes.
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if pgDB != nil {
			if err := pgDB.PingContext(r.Context()); err != nil {
				http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API routes — versioned so the parent product can call /api/v1/* without conflicts.
	api := r.PathPrefix("/api/v1").Subrouter()
	timelineHandler := handler.New(gw, log)
	timelineHandler.Register(api)

	// ── CORS — read from env, not hardcoded ───────────────────────────────────
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{allowedOrigins}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-User-ID", "Authorization"}),
	)

	// ── HTTP Server with timeouts ─────────────────────────────────────────────
	// Without timeouts, a slow client can hold a connection open forever.
	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      cors(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	// On SIGTERM (deploy/scale-down), finish in-flight requests before exiting
	// so no edit is dropped mid-save.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infow("composition service running", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	<-quit
	log.Info("shutdown signal received — draining requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("forced shutdown", "error", err)
	}

	// Let in-flight background saves finish before the process exits.
	if err := timelineHandler.FlushAll(shutdownCtx); err != nil {
		log.Warnw("timed out waiting for pending saves", "error", err)
	}
	log.Info("server stopped cleanly")
}
