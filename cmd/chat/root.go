package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/careerpath/internal/config"
	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/ashureev/careerpath/internal/gateway"
	"github.com/ashureev/careerpath/internal/session"
	"github.com/ashureev/careerpath/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	storage  string
	dbPath   string
	dir      string
	gateway  string
	noColor  bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "chat",
		Short:         "Talk to the career path assistant in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.storage, "storage", "", "storage backend: sqlite or file (default from STORAGE_BACKEND)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from DB_PATH)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "session directory for the file backend (default from SESSIONS_DIR)")
	cmd.Flags().StringVar(&opts.gateway, "gateway", "", "generation endpoint URL (default from GATEWAY_URL)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	return cmd
}

func runChat(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	_ = godotenv.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	repo, err := store.Open(cfg.StorageBackend, cfg.DBPath, cfg.SessionsDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = repo.Close() }()

	sessions, err := session.Open(ctx, repo, cfg.SessionSlot)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	gen, err := terminalGenerator(ctx, cfg.Gateway)
	if err != nil {
		return err
	}

	p := newPrinter(out, !opts.noColor)
	ctrl := conversation.New(sessions, gen, conversation.Options{
		Pacer:        conversation.NewRandomPacer(cfg.Pacing.Min, cfg.Pacing.Max),
		OpeningDelay: cfg.Pacing.OpeningDelay,
		Listener:     p,
	})
	defer ctrl.Close()

	r := &repl{ctrl: ctrl, out: p}
	r.ctrl.StartNewChat(ctx)
	return r.run(ctx, in)
}

func applyFlags(cfg *config.Config, opts *options) {
	if opts.storage != "" {
		cfg.StorageBackend = strings.ToLower(opts.storage)
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if opts.dir != "" {
		cfg.SessionsDir = opts.dir
	}
	if opts.gateway != "" {
		cfg.Gateway.URL = opts.gateway
	}
}

func terminalGenerator(ctx context.Context, cfg config.GatewayConfig) (gateway.Generator, error) {
	if cfg.URL != "" {
		return gateway.NewClient(cfg.URL, cfg.Timeout), nil
	}
	if cfg.GeminiAPIKey != "" {
		g, err := gateway.NewGenAIGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return gateway.WithTimeout(g, cfg.Timeout), nil
	}
	slog.Warn("No generation backend configured")
	return nil, nil
}

// lines feeds input lines to a channel so the loop can also watch ctx.
// The reader goroutine stops sending once ctx is done.
func lines(ctx context.Context, in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
