package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/lughat/internal/gamification"
	"github.com/example/lughat/internal/review"
	"github.com/example/lughat/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Progress is the part of the review service the bot talks to
type Progress interface {
	Grade(ctx context.Context, ev review.GradeEvent) (*review.GradeResult, error)
	CompleteLesson(ctx context.Context, ev review.LessonEvent) (*review.LessonResult, error)
	SaveItem(ctx context.Context, ev review.SaveEvent) (*review.SaveResult, error)
	DueCards(ctx context.Context, userID int64, limit int) ([]models.Card, error)
	CountDue(ctx context.Context, userID int64) (int, error)
	SeedLetterCards(ctx context.Context, userID int64) (int, error)
	Summary(ctx context.Context, userID int64) (*review.Summary, error)
	TodayMissions(ctx context.Context, userID int64) ([]models.MissionProgress, error)
	Badges(ctx context.Context, userID int64) ([]review.EarnedBadge, error)
	WeakAreas(ctx context.Context, userID int64) ([]models.WeakArea, error)
	SetReminder(ctx context.Context, userID int64, enabled bool, hour int) error
	SetTimezone(ctx context.Context, userID int64, timezone string) error
}

// CardLabeler returns the text shown on the front of a card
type CardLabeler interface {
	CardText(ctx context.Context, target models.CardTarget) (string, error)
}

// MissionImporter loads a mission catalog file uploaded by an admin
type MissionImporter func(ctx context.Context, path string) (string, error)

// sender is satisfied by *tgbotapi.BotAPI
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot represents the Telegram bot application
type Bot struct {
	api      sender
	botAPI   *tgbotapi.BotAPI
	progress Progress
	labels   CardLabeler
	importer MissionImporter
	config   *BotConfig
	admins   map[int64]bool

	mu                 sync.Mutex
	awaitingFileUpload map[int64]bool
}

// New creates a new bot instance
func New(token string, progress Progress, labels CardLabeler, importer MissionImporter, config *BotConfig) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	if config == nil {
		config = DefaultConfig()
	}
	botAPI.Debug = config.Debug
	slog.Info("telegram bot authorized", "account", botAPI.Self.UserName)

	b := newBot(botAPI, progress, labels, importer, config)
	b.botAPI = botAPI
	return b, nil
}

func newBot(api sender, progress Progress, labels CardLabeler, importer MissionImporter, config *BotConfig) *Bot {
	admins := make(map[int64]bool, len(config.AdminUserIDs))
	for _, id := range config.AdminUserIDs {
		admins[id] = true
	}
	return &Bot{
		api:                api,
		progress:           progress,
		labels:             labels,
		importer:           importer,
		config:             config,
		admins:             admins,
		awaitingFileUpload: make(map[int64]bool),
	}
}

// Start receives updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.botAPI == nil {
		return fmt.Errorf("bot is not connected to telegram")
	}

	// Set up the update configuration
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	updates := b.botAPI.GetUpdatesChan(updateConfig)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.botAPI.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(userID int64, count int) error {
	// В личных чатах user ID совпадает с chat ID
	msg := tgbotapi.NewMessage(userID, reminderText(count))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "▶️ Повторить", CallbackData: callbackReview}}})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", userID, err)
	}
	slog.Info("reminder sent", "user_id", userID, "due", count)
	return nil
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) setAwaitingUpload(userID int64, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v {
		b.awaitingFileUpload[userID] = true
	} else {
		delete(b.awaitingFileUpload, userID)
	}
}

func (b *Bot) isAwaitingUpload(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[userID]
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// MainMenuButtons returns the main menu layout
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "📚 Повторение", CallbackData: callbackReview}},
		{
			{Text: "📊 Статистика", CallbackData: callbackStats},
			{Text: "🎯 Миссии", CallbackData: callbackMissions},
		},
		{
			{Text: "🏅 Значки", CallbackData: callbackBadges},
			{Text: "🧩 Слабые темы", CallbackData: callbackWeak},
		},
	}
}

func newMilestoneLines(out *gamification.Outcome) []string {
	if out == nil {
		return nil
	}
	var lines []string
	if out.LeveledUp {
		lines = append(lines, fmt.Sprintf("🆙 Новый уровень: %d", out.Level))
	}
	for _, m := range out.CompletedMissions {
		lines = append(lines, fmt.Sprintf("🎯 Миссия выполнена: %s (+%d XP)", m.Title, m.XPReward))
	}
	for _, r := range out.NewBadges {
		lines = append(lines, fmt.Sprintf("%s Новый значок: %s", r.Icon, r.Title))
	}
	return lines
}
