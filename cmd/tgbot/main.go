package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Cardeon/internal/config"
	"github.com/Alias1177/Cardeon/internal/database"
	"github.com/Alias1177/Cardeon/internal/inference"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel)
	logger := log.With().Str("component", "tgbot").Logger()

	// Get bot token from environment
	if cfg.TelegramBotToken == "" {
		logger.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store ReminderStore
	if cfg.EnableDB {
		db, err := database.New(ctx, config.DSN(cfg))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		store = db
	}

	generator, err := inference.NewGenerator(cfg, inference.NewTransport(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create inference backend")
	}
	client := inference.NewClient(generator)
	newPipeline := func() *pipeline.Pipeline { return pipeline.New(client, cfg.Timeout()) }

	// Initialize Telegram bot
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	logger.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	bot := NewBot(api, newPipeline, report.NewExporter(), store, logger)

	// Setup update configuration
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	go remindCheckups(ctx, bot)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down bot")
			api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message != nil {
				go bot.HandleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				go bot.HandleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

// remindCheckups runs periodically to announce upcoming checkups
func remindCheckups(ctx context.Context, bot *Bot) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := bot.RemindDueCheckups(ctx, now); err != nil {
				log.Error().Err(err).Msg("Error sending checkup reminders")
			}
		}
	}
}
