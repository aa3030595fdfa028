package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duetapp/duet/internal/api"
	"github.com/duetapp/duet/internal/config"
	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/cycle"
	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/localcache"
	"github.com/duetapp/duet/internal/metrics"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/points"
	"github.com/duetapp/duet/internal/ratelimit"
	"github.com/duetapp/duet/internal/session"
	"github.com/duetapp/duet/internal/sideeffect"
	"github.com/duetapp/duet/internal/user"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Duet API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	cache, err := localcache.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer cache.Close()
	slog.Info("opened local cache", "path", cfg.Cache.Path)

	userStore := user.NewStore(pool)
	coupleStore := couple.NewStore(pool)
	notifStore := notify.NewStore(pool)
	pointsStore := points.NewStore(pool)
	cycleStore := cycle.NewStore(pool)
	entityStore := entity.NewStore(pool)

	hub := notify.NewHub()
	dispatcher := sideeffect.NewDispatcher(notifStore, hub, pointsStore,
		cfg.Dispatch.BatchSize, cfg.Dispatch.FlushInterval)
	go dispatcher.Start(ctx)

	sessions := session.NewService(userStore, coupleStore, cfg.Session.ResolveTimeout)
	engine := entity.NewEngine(entityStore, sessions, dispatcher, cache)

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})
	engine.Instrument(m)
	dispatcher.Instrument(m)

	loginLimiter := ratelimit.New(cfg.RateLimit.LoginAttempts, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Couples:        coupleStore,
		Sessions:       sessions,
		Engine:         engine,
		Notifications:  notifStore,
		Hub:            hub,
		Points:         pointsStore,
		Cycle:          cycleStore,
		Effects:        dispatcher,
		Cache:          cache,
		LoginLimiter:   loginLimiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	// No server-wide write timeout: the notification stream holds its
	// response open indefinitely.
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	dispatcher.Stop()

	return srv.Shutdown(shutdownCtx)
}
