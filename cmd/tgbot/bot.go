package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Alias1177/Cardeon/internal/database"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/report"
	"github.com/Alias1177/Cardeon/models"
)

const (
	buttonPredict  = "Run Prediction"
	buttonCheckups = "My Checkups"
	buttonHelp     = "Help"
	buttonMenu     = "Main Menu"

	callbackReport = "report"
)

// Sender is the part of tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ReminderStore is the checkup history plus reminder bookkeeping.
type ReminderStore interface {
	database.CheckupStore
	DueCheckups(ctx context.Context, until time.Time) ([]models.CheckupReminder, error)
	MarkReminded(ctx context.Context, checkupID string) error
}

// UserState represents the current state of a user's interaction
type UserState struct {
	LastPatient  *models.PatientFeatureVector
	LastResult   *models.PredictionResult
	LastReport   string
	LastActivity time.Time
}

// Bot routes Telegram updates to the prediction pipeline.
type Bot struct {
	api         Sender
	newPipeline func() *pipeline.Pipeline
	exporter    *report.Exporter
	store       ReminderStore
	logger      zerolog.Logger

	mu     sync.Mutex
	states map[int64]*UserState
}

// NewBot creates a bot. store may be nil when checkup history is disabled.
func NewBot(api Sender, newPipeline func() *pipeline.Pipeline, exporter *report.Exporter, store ReminderStore, logger zerolog.Logger) *Bot {
	return &Bot{
		api:         api,
		newPipeline: newPipeline,
		exporter:    exporter,
		store:       store,
		logger:      logger,
		states:      make(map[int64]*UserState),
	}
}

func (b *Bot) state(userID int64) *UserState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.states[userID]
	if !ok {
		state = &UserState{}
		b.states[userID] = state
	}
	state.LastActivity = time.Now()
	return state
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// HandleMessage processes incoming text messages
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	userID := message.From.ID
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	if b.store != nil {
		if err := b.store.EnsureUser(ctx, userID, chatID); err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error registering user")
		}
	}

	command, args, _ := strings.Cut(text, " ")
	switch text {
	case buttonPredict, buttonCheckups, buttonHelp, buttonMenu:
		command, args = text, ""
	}

	switch command {
	case "/start", buttonMenu:
		msg := tgbotapi.NewMessage(chatID, "Welcome to CARDEON, heart disease predictability in your hands. What would you like to do?")
		msg.ReplyMarkup = mainMenuKeyboard()
		b.send(msg)
	case "/predict", buttonPredict:
		if strings.TrimSpace(args) == "" {
			b.reply(chatID, predictUsage())
			return
		}
		b.runPrediction(ctx, userID, chatID, args)
	case "/report":
		b.sendReport(userID, chatID)
	case "/checkup":
		b.addCheckup(ctx, userID, chatID, args)
	case "/checkups", buttonCheckups:
		b.listCheckups(ctx, userID, chatID)
	case "/help", buttonHelp:
		b.reply(chatID, helpText())
	default:
		msg := tgbotapi.NewMessage(chatID, "I did not understand that. Use the menu or /help.")
		msg.ReplyMarkup = mainMenuKeyboard()
		b.send(msg)
	}
}

// HandleCallback processes inline keyboard presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}

	// Acknowledge the callback query
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to acknowledge callback")
	}

	switch callback.Data {
	case callbackReport:
		b.sendReport(callback.From.ID, callback.Message.Chat.ID)
	default:
		b.logger.Debug().Str("data", callback.Data).Msg("Unknown callback")
	}
}

func (b *Bot) runPrediction(ctx context.Context, userID, chatID int64, args string) {
	raw, err := parseKeyValues(args)
	if err != nil {
		b.reply(chatID, err.Error()+"\n\n"+predictUsage())
		return
	}

	patient, err := models.ParsePatient(raw)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			b.reply(chatID, formatValidation(verr))
			return
		}
		b.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	b.reply(chatID, "Running cardiovascular risk assessment...")

	result, err := b.newPipeline().Predict(ctx, patient)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Prediction failed")
		b.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	state := b.state(userID)
	b.mu.Lock()
	state.LastPatient = &patient
	state.LastResult = result
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.UpdateLastPredicted(ctx, userID, result); err != nil {
			b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error updating last predicted time")
		}
	}

	msg := tgbotapi.NewMessage(chatID, formatResult(result))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Download Report", callbackReport),
		),
	)
	b.send(msg)
}

func (b *Bot) sendReport(userID, chatID int64) {
	state := b.state(userID)
	b.mu.Lock()
	patient, result := state.LastPatient, state.LastResult
	b.mu.Unlock()

	if patient == nil || result == nil {
		b.reply(chatID, "Run a prediction first, then ask for the report.")
		return
	}

	doc, err := b.exporter.Export(*patient, result)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Report export failed")
		b.reply(chatID, "Sorry, the report could not be generated.")
		return
	}

	b.mu.Lock()
	state.LastReport = doc.Filename
	b.mu.Unlock()

	upload := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Filename, Bytes: doc.Body})
	upload.Caption = "CARDEON clinical report"
	b.send(upload)
}

func (b *Bot) addCheckup(ctx context.Context, userID, chatID int64, args string) {
	if b.store == nil {
		b.reply(chatID, "Checkup history is not enabled on this bot.")
		return
	}

	dateText, notes, _ := strings.Cut(strings.TrimSpace(args), " ")
	date, err := time.Parse(models.CheckupDateLayout, dateText)
	if err != nil {
		b.reply(chatID, "Usage: /checkup YYYY-MM-DD notes")
		return
	}

	state := b.state(userID)
	b.mu.Lock()
	documentName := state.LastReport
	b.mu.Unlock()

	checkup, err := b.store.CreateCheckup(ctx, userID, date, strings.TrimSpace(notes), documentName)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error creating checkup")
		b.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	b.reply(chatID, fmt.Sprintf("Checkup saved for %s.", checkup.Date.Format(models.CheckupDateLayout)))
}

func (b *Bot) listCheckups(ctx context.Context, userID, chatID int64) {
	if b.store == nil {
		b.reply(chatID, "Checkup history is not enabled on this bot.")
		return
	}

	checkups, err := b.store.ListCheckups(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error listing checkups")
		b.reply(chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	b.reply(chatID, formatCheckups(checkups))
}

// RemindDueCheckups notifies users about checkups dated up to one day ahead.
func (b *Bot) RemindDueCheckups(ctx context.Context, now time.Time) error {
	if b.store == nil {
		return nil
	}

	due, err := b.store.DueCheckups(ctx, now.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	for _, r := range due {
		text := fmt.Sprintf("Reminder: checkup on %s", r.Checkup.Date.Format(models.CheckupDateLayout))
		if r.Checkup.Notes != "" {
			text += " (" + r.Checkup.Notes + ")"
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(r.ChatID, text)); err != nil {
			b.logger.Error().Err(err).Int64("chat_id", r.ChatID).Msg("Failed to send reminder")
			continue
		}
		if err := b.store.MarkReminded(ctx, r.Checkup.ID); err != nil {
			return err
		}
	}
	return nil
}

// parseKeyValues turns "age=52 sex=1 ..." into loosely typed input.
func parseKeyValues(args string) (map[string]any, error) {
	raw := make(map[string]any)
	for _, token := range strings.Fields(args) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("cannot read %q, expected key=value", token)
		}
		if _, dup := raw[key]; dup {
			return nil, fmt.Errorf("%s given twice", key)
		}
		raw[key] = json.Number(strings.TrimSuffix(value, ","))
	}
	return raw, nil
}

// mainMenuKeyboard returns the persistent reply keyboard
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonPredict),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonCheckups),
			tgbotapi.NewKeyboardButton(buttonHelp),
		),
	)
}
