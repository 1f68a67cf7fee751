package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawrelay/lawyer-bot/internal/bot"
	"github.com/lawrelay/lawyer-bot/internal/config"
	"github.com/lawrelay/lawyer-bot/internal/dialogue"
	"github.com/lawrelay/lawyer-bot/internal/router"
	"github.com/lawrelay/lawyer-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting lawyer question bot", "store", cfg.StoreBackend, "reviewer_chat", cfg.ReviewerChatID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the pending submission store and restore what survived the last run
	pending, err := store.Open(ctx, cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer pending.Close()

	restored, err := pending.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending questions: %w", err)
	}
	logger.Info("restored pending questions", "count", len(restored), "path", cfg.StorePath)

	api, err := bot.Connect(cfg.TelegramToken)
	if err != nil {
		return err
	}
	logger.Info("authorized", "account", api.Self.UserName)

	sender := bot.NewSender(api)
	telegramBot := bot.New(bot.Config{
		API:      api,
		Sender:   sender,
		Dialogue: dialogue.New(cfg.Phone),
		Router: router.New(router.Config{
			Store:        pending,
			Sender:       sender,
			ReviewerChat: cfg.ReviewerChatID,
			Logger:       logger,
		}),
		PollTimeout: cfg.PollTimeout,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
	})

	logger.Info("bot is running, press Ctrl+C to stop")

	// Run the bot (blocks until shutdown)
	return telegramBot.Run(ctx)
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
