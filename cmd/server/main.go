package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "realtime-collab/internal/app"
	"realtime-collab/internal/execute"
	httpx "realtime-collab/internal/http"
	store "realtime-collab/internal/store"
	ws "realtime-collab/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(cfg)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres connection + migrations (identity provider)
	pg, err := store.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres connect", "err", err)
		log.Fatal(err)
	}
	defer pg.Close()
	if err := store.RunMigrations(ctx, pg, logger); err != nil {
		logger.Error("migrations", "err", err)
		log.Fatal(err)
	}

	// Redis: room relay between instances + token revocations
	rdb, err := store.NewRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error("redis connect", "err", err)
		log.Fatal(err)
	}
	defer rdb.Close()
	bus := ws.NewRedisBus(rdb, logger)
	revocations := store.NewRevocations(rdb)

	// Session hub
	hub := ws.NewHub(logger, bus, ws.Options{
		SendBuffer:   cfg.WSSendBuffer,
		PingInterval: cfg.WSPingInterval,
		Origins:      cfg.WSOrigins,
	})
	go hub.Run(ctx)

	exec := execute.NewClient(cfg.ExecURL, cfg.ExecClientID, cfg.ExecClientSecret, cfg.ExecTimeout, logger)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, logger, httpx.Deps{
		WS:      http.HandlerFunc(hub.ServeWS),
		Users:   pg,
		Revoked: revocations,
		Exec:    exec,
		Ready: []httpx.ReadyCheck{
			{Name: "postgres", Ping: pg.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// shutdown
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	<-hub.Done()

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
