package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"alexbot/internal/bus"
	"alexbot/internal/channel"
	"alexbot/internal/config"
	"alexbot/internal/metrics"
	"alexbot/internal/provider"
	"alexbot/internal/relay"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "alexbot",
		Short: "alexbot: Telegram group-chat relay to Gemini",
		Long:  "alexbot relays Telegram group-chat messages to the Gemini API and posts the replies back, in character.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.alexbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			cfg.Telegram.Token = "${TELEGRAM_BOT_TOKEN}"
			cfg.Gemini.APIKey = "${GEMINI_API_KEY}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("alexbot", version)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		RunE:  run,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func run(cmd *cobra.Command, args []string) error {
	// Local .env is a convenience for development; absence is fine.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env file")
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// A missing file falls back to defaults plus env; a malformed or
		// invalid one still fails fast.
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		logger.Warn("config not found, using defaults", "path", cfgPath)
		cfg = config.Defaults()
		config.ApplyEnv(cfg)
		if verr := config.Validate(cfg); verr != nil {
			return verr
		}
	}

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	gen, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
		Policy: cfg.Gemini.Retry.Policy(),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer gen.Close()

	tg := channel.NewTelegram(channel.TelegramConfig{
		Token:   cfg.Telegram.Token,
		Welcome: cfg.Replies.Welcome,
		Policy:  cfg.Telegram.Retry.Policy(),
		Logger:  logger,
	})

	rel := relay.New(relay.Config{
		Generator: gen,
		Sender:    tg,
		Bus:       messageBus,
		Limits: relay.Limits{
			MaxPromptLen: cfg.Limits.MaxPromptLen,
			MaxReplyLen:  cfg.Limits.MaxReplyLen,
			TruncateAt:   cfg.Limits.TruncateAt,
			Ellipsis:     cfg.Limits.Ellipsis,
		},
		Fallbacks: relay.Fallbacks{
			TooLong:       cfg.Replies.TooLong,
			RateLimited:   cfg.Replies.RateLimited,
			NotConfigured: cfg.Replies.NotConfigured,
			GenFailed:     cfg.Replies.GenFailed,
			Glitch:        cfg.Replies.Glitch,
		},
		Concurrency: cfg.General.MaxConcurrentMessages,
		Logger:      logger,
	})

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr)
	}

	go rel.Run(ctx)

	logger.Info("starting bot", "version", version)
	return tg.Start(ctx, messageBus)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
