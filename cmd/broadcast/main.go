package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/Cardeon/internal/config"
	"github.com/Alias1177/Cardeon/internal/database"
	"github.com/Alias1177/Cardeon/models"
)

// sendDelay keeps a broadcast under Telegram's 30 messages per second.
const sendDelay = 50 * time.Millisecond

// Sender is the part of tgbotapi.BotAPI the broadcast uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Stats summarizes one broadcast run.
type Stats struct {
	Total  int
	Sent   int
	Failed int
}

func main() {
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send an announcement to every registered bot user",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			file, _ := cmd.Flags().GetString("file")
			return run(cmd, message, file)
		},
	}
	cmd.Flags().String("message", "", "Announcement text")
	cmd.Flags().String("file", "", "Read the announcement text from this file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, message, file string) error {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		message = string(data)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("empty message: pass --message or --file")
	}

	cfg := config.LoadEnv()
	config.SetupLogger(cfg.LogLevel)

	if cfg.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN not set in environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, config.DSN(cfg))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("initialize Telegram bot: %w", err)
	}

	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("get users from database: %w", err)
	}
	log.Info().Int("users", len(users)).Msg("Found users in database")

	stats := broadcast(ctx, bot, users, message, sendDelay)
	fmt.Fprintf(cmd.OutOrStdout(), "Broadcast completed: %d sent, %d failed out of %d total users\n",
		stats.Sent, stats.Failed, stats.Total)
	return nil
}

// broadcast sends message to each user in order, pausing delay between sends.
// It stops early when ctx is cancelled.
func broadcast(ctx context.Context, api Sender, users []models.UserProfile, message string, delay time.Duration) Stats {
	stats := Stats{Total: len(users)}

	for i, user := range users {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(users)-i).Msg("Broadcast interrupted")
			break
		}

		if _, err := api.Send(tgbotapi.NewMessage(user.ChatID, message)); err != nil {
			log.Error().Err(err).Int64("user_id", user.UserID).Int64("chat_id", user.ChatID).Msg("Failed to send message")
			stats.Failed++
		} else {
			log.Debug().Int64("user_id", user.UserID).Int("n", i+1).Int("total", len(users)).Msg("Message sent")
			stats.Sent++
		}

		if i < len(users)-1 && delay > 0 {
			time.Sleep(delay)
		}
	}

	log.Info().Int("total", stats.Total).Int("sent", stats.Sent).Int("failed", stats.Failed).Msg("Broadcast completed")
	return stats
}
