// Career Path Assistant server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/careerpath/internal/api"
	"github.com/ashureev/careerpath/internal/config"
	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/ashureev/careerpath/internal/convlog"
	"github.com/ashureev/careerpath/internal/gateway"
	"github.com/ashureev/careerpath/internal/health"
	"github.com/ashureev/careerpath/internal/middleware"
	"github.com/ashureev/careerpath/internal/session"
	"github.com/ashureev/careerpath/internal/store"
	"github.com/ashureev/careerpath/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "storage", cfg.StorageBackend, "dev", cfg.IsDevelopment())

	repo, err := store.Open(cfg.StorageBackend, cfg.DBPath, cfg.SessionsDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("storage health check: %w", err)
	}

	sessions, err := session.Open(ctx, repo, cfg.SessionSlot)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	slog.Info("Sessions loaded", "count", sessions.Len(), "slot", cfg.SessionSlot)

	convLogger, err := convlog.New(convlog.Config{
		Enabled:          cfg.ConversationLog.Enabled,
		Dir:              cfg.ConversationLog.Dir,
		GlobalEnabled:    cfg.ConversationLog.GlobalEnabled,
		GlobalPath:       cfg.ConversationLog.GlobalPath,
		GlobalMaxSizeMB:  cfg.ConversationLog.GlobalMaxSizeMB,
		GlobalMaxBackups: cfg.ConversationLog.GlobalMaxBackups,
		QueueSize:        cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("init conversation logger: %w", err)
	}
	defer func() { _ = convLogger.Close() }()

	gen, gemini := newGenerator(ctx, cfg.Gateway)

	limiter := api.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	origins := cfg.AllowedOrigins()
	hub := api.NewHub(limiter, origins, cfg.IsDevelopment())
	defer hub.Close()

	ctrl := conversation.New(sessions, gen, conversation.Options{
		Pacer:        conversation.NewRandomPacer(cfg.Pacing.Min, cfg.Pacing.Max),
		OpeningDelay: cfg.Pacing.OpeningDelay,
		Listener:     conversation.Listeners{hub, convlog.Listener(convLogger, "web")},
	})
	hub.SetController(ctrl)
	defer ctrl.Close()

	ctrl.StartNewChat(ctx)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	if cfg.IsDevelopment() && len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(middleware.CORS(origins))

	api.NewHealthHandler(repo).RegisterHealth(r)
	api.NewHandler(ctrl, limiter).RegisterRoutes(r)
	if gemini != nil {
		gateway.NewHandler(gemini).RegisterRoutes(r)
	}
	r.Get("/ws/transcript", hub.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: the transcript WebSocket is long-lived.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	healthLis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("listen for gRPC health: %w", err)
	}
	healthSrv := health.New(repo, 10*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return healthSrv.Serve(gctx, healthLis)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newGenerator picks the generation backend: a remote gateway when
// GATEWAY_URL is set, otherwise Gemini when an API key is present. The
// Gemini generator is also returned so the server can expose its route.
func newGenerator(ctx context.Context, cfg config.GatewayConfig) (gateway.Generator, *gateway.GenAIGenerator) {
	var gemini *gateway.GenAIGenerator
	if cfg.GeminiAPIKey != "" {
		g, err := gateway.NewGenAIGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Gemini unavailable", "error", err)
		} else {
			gemini = g
			slog.Info("Gemini generation enabled", "model", cfg.GeminiModel)
		}
	}

	switch {
	case cfg.URL != "":
		slog.Info("Using remote generation gateway", "url", cfg.URL)
		return gateway.NewClient(cfg.URL, cfg.Timeout), gemini
	case gemini != nil:
		return gateway.WithTimeout(gemini, cfg.Timeout), gemini
	}
	slog.Warn("No generation backend configured, completed profiles will get an apology")
	return nil, nil
}
