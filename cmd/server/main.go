package main

import (
	"context"
	"ctchen222/tictactoe-engine/internal/api/controller"
	apirepository "ctchen222/tictactoe-engine/internal/api/repository"
	"ctchen222/tictactoe-engine/internal/api/service"
	"ctchen222/tictactoe-engine/internal/config"
	"ctchen222/tictactoe-engine/internal/db"
	"ctchen222/tictactoe-engine/internal/events"
	"ctchen222/tictactoe-engine/internal/hub"
	"ctchen222/tictactoe-engine/internal/logger"
	"ctchen222/tictactoe-engine/internal/server"
	"ctchen222/tictactoe-engine/internal/session"
	"ctchen222/tictactoe-engine/internal/telemetry"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfgPath := flag.String("config", "./config.yml", "path to config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// Initialize telemetry before the logger so the otel bridge has a provider.
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()
	logger.Init(cfg.Log.Level)

	// Initialize Redis; without it events are dropped.
	publisher := events.NewNopPublisher()
	if cfg.Redis.Addr != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer func() {
			_ = rdb.Close()
		}()
		publisher = events.NewRedisPublisher(rdb)
	} else {
		slog.Warn("No redis address configured, session events are not published")
	}

	// Initialize SQLite DB
	pool, err := db.Connect(cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = pool.Close()
	}()

	playerRepo := apirepository.NewPlayerRepository(pool)
	playerService := service.NewPlayerService(playerRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	playerController := controller.NewPlayerController(playerService)

	h := hub.NewHub(publisher, hub.WithSessionOptions(session.WithThinkDelay(cfg.Game.ThinkDelay)))
	defer h.Close(context.WithoutCancel(ctx))

	gin.SetMode(gin.ReleaseMode)
	srv := server.NewServer(h, playerController, playerService, cfg.Game.DefaultDifficulty)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: otelhttp.NewHandler(srv.Engine(), "http.server"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server started", "http.addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server exiting")
	return nil
}
