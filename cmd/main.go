package main

import (
	"context"
	"log"
	"log/slog"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"will-bot/internal/closer"
	"will-bot/internal/config"
	"will-bot/internal/dispatcher"
	"will-bot/internal/keystore"
	"will-bot/internal/openrouter"
	"will-bot/internal/pinger"
	"will-bot/internal/server"
	"will-bot/internal/telegram"
	"will-bot/pkg/ratelimiter"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	cls := closer.NewCloser(syscall.SIGINT, syscall.SIGTERM)
	defer cls.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cls.Add(func() error {
		cancel()
		return nil
	})

	keys, err := keystore.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open key store: %s", err)
	}
	cls.Add(keys.Close)
	slog.Info("key store opened", "path", cfg.DBPath)

	llm := openrouter.NewClient(
		openrouter.Opts{
			RlOpts: ratelimiter.Opts{
				PerUserLimit: 1,
				GlobalLimit:  5,
			},
		},
	)

	bot, err := telegram.NewBot(telegram.Opts{Token: cfg.BotToken, Debug: cfg.Debug})
	if err != nil {
		log.Fatalf("failed to start bot: %s", err)
	}

	eventDispatcher, err := dispatcher.NewEventDispatcher(
		dispatcher.Deps{Keys: keys, Completer: llm, Chat: bot},
	)
	if err != nil {
		log.Fatalf("failed to init event dispatcher: %s", err)
	}
	bot.AttachDispatcher(eventDispatcher)

	if cfg.PingURL != "" {
		go pinger.New(pinger.Opts{URL: cfg.PingURL, Interval: cfg.PingInterval}).Run(ctx)
	}

	var srvDeps server.Deps
	if cfg.PublicURL != "" {
		link, err := bot.RegisterWebhook(cfg.PublicURL)
		if err != nil {
			log.Fatalf("failed to register webhook: %s", err)
		}
		slog.Info("webhook registered", "url", link)

		srvDeps = server.Deps{
			WebhookPath: bot.WebhookPath(),
			Webhook:     bot.WebhookHandler(),
		}
	} else {
		slog.Warn("PUBLIC_URL is not set, falling back to long polling")
		go bot.Listen(ctx)
	}

	srv := server.New(srvDeps, server.Opts{Addr: cfg.ListenAddr()})
	cls.Add(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("http server error", "error", err)
		}
	}()

	cls.Wait()
}
