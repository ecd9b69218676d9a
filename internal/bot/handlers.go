package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/lughat/internal/review"
	"github.com/example/lughat/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// Constants for callback data
const (
	callbackReview   = "review"
	callbackStats    = "stats"
	callbackMissions = "missions"
	callbackBadges   = "badges"
	callbackWeak     = "weak"
	callbackMenu     = "menu"

	// g:<card id>:<grade>:<submission key>
	gradePrefix = "g:"
)

// handleUpdate routes one Telegram update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Document != nil && update.Message.From != nil &&
		b.isAwaitingUpload(update.Message.From.ID):
		err = b.handleDocument(ctx, update.Message)
	case update.Message != nil:
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Не понимаю. Используйте /menu, чтобы открыть меню.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		err = b.sendMessage(msg)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		slog.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
	}
}

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	userID, chatID := message.From.ID, message.Chat.ID

	switch message.Command() {
	case "start":
		return b.handleStart(ctx, userID, chatID)
	case "help":
		return b.sendMessage(tgbotapi.NewMessage(chatID, helpText))
	case "menu":
		return b.showMainMenu(chatID)
	case "review":
		return b.showDueCards(ctx, userID, chatID)
	case "stats":
		return b.handleStats(ctx, userID, chatID)
	case "missions":
		return b.handleMissions(ctx, userID, chatID)
	case "badges":
		return b.handleBadges(ctx, userID, chatID)
	case "weak":
		return b.handleWeak(ctx, userID, chatID)
	case "lesson":
		return b.handleLesson(ctx, userID, chatID, message.CommandArguments())
	case "save":
		return b.handleSave(ctx, userID, chatID, message.CommandArguments())
	case "remind":
		return b.handleRemind(ctx, userID, chatID, message.CommandArguments())
	case "timezone":
		return b.handleTimezone(ctx, userID, chatID, message.CommandArguments())
	case "import":
		return b.handleImportCommand(userID, chatID)
	default:
		msg := tgbotapi.NewMessage(chatID, "Неизвестная команда. Используйте /help.")
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
		return b.sendMessage(msg)
	}
}

const helpText = `Команды:
/review - повторить карточки
/stats - прогресс и серия дней
/missions - миссии на сегодня
/badges - полученные значки
/weak - слабые темы
/lesson <урок> <верно> <всего> - отметить пройденный урок
/save <слово> - добавить слово в словарь
/remind <час|off> - ежедневное напоминание
/timezone <зона> - часовой пояс, например Asia/Tashkent`

func (b *Bot) handleStart(ctx context.Context, userID, chatID int64) error {
	created, err := b.progress.SeedLetterCards(ctx, userID)
	if err != nil {
		return err
	}
	text := "👋 Добро пожаловать! Повторяйте карточки каждый день, чтобы не потерять серию."
	if created > 0 {
		text += fmt.Sprintf("\n\nДобавлено %d карточек с буквами алфавита.", created)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

func (b *Bot) showMainMenu(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "Главное меню")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

// showDueCards sends the next due cards, each with its own grading keyboard
func (b *Bot) showDueCards(ctx context.Context, userID, chatID int64) error {
	cards, err := b.progress.DueCards(ctx, userID, b.config.ReviewBatch)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🎉 На сегодня всё повторено!"))
	}

	for _, card := range cards {
		front, err := b.labels.CardText(ctx, card.Target)
		if err != nil {
			front = card.Target.String()
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("🃏 %s\n\nНасколько хорошо вы помните?", front))
		msg.ReplyMarkup = gradeKeyboard(card.ID, uuid.NewString())
		if err := b.sendMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

// gradeKeyboard builds 0-5 buttons sharing one submission key, so a double
// tap on the same card is recorded once.
func gradeKeyboard(cardID int64, key string) tgbotapi.InlineKeyboardMarkup {
	labels := []string{"0 😶", "1 😣", "2 😕", "3 🙂", "4 😀", "5 🤩"}
	var rows [][]MenuButton
	for start := 0; start < len(labels); start += 3 {
		var row []MenuButton
		for g := start; g < start+3; g++ {
			row = append(row, MenuButton{Text: labels[g], CallbackData: gradeCallbackData(cardID, g, key)})
		}
		rows = append(rows, row)
	}
	return createKeyboard(rows)
}

func gradeCallbackData(cardID int64, grade int, key string) string {
	return fmt.Sprintf("%s%d:%d:%s", gradePrefix, cardID, grade, key)
}

// parseGradeCallback reverses gradeCallbackData
func parseGradeCallback(data string) (cardID int64, grade int, key string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(data, gradePrefix), ":", 3)
	if !strings.HasPrefix(data, gradePrefix) || len(parts) != 3 {
		return 0, 0, "", fmt.Errorf("malformed grade callback %q", data)
	}
	if cardID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, "", fmt.Errorf("bad card id: %w", err)
	}
	if grade, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, "", fmt.Errorf("bad grade: %w", err)
	}
	return cardID, grade, parts[2], nil
}

// HandleCallback обрабатывает нажатия на inline-кнопки
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always send an answer to the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		slog.Warn("failed to answer callback", "error", err)
	}

	userID, chatID := callback.From.ID, callback.Message.Chat.ID
	switch callback.Data {
	case callbackMenu:
		return b.showMainMenu(chatID)
	case callbackReview:
		return b.showDueCards(ctx, userID, chatID)
	case callbackStats:
		return b.handleStats(ctx, userID, chatID)
	case callbackMissions:
		return b.handleMissions(ctx, userID, chatID)
	case callbackBadges:
		return b.handleBadges(ctx, userID, chatID)
	case callbackWeak:
		return b.handleWeak(ctx, userID, chatID)
	}

	if strings.HasPrefix(callback.Data, gradePrefix) {
		cardID, grade, key, err := parseGradeCallback(callback.Data)
		if err != nil {
			return err
		}
		return b.handleGrade(ctx, userID, chatID, cardID, grade, key)
	}
	return fmt.Errorf("unknown callback %q", callback.Data)
}

func (b *Bot) handleGrade(ctx context.Context, userID, chatID, cardID int64, grade int, key string) error {
	res, err := b.progress.Grade(ctx, review.GradeEvent{UserID: userID, CardID: cardID, Grade: grade, Key: key})
	switch {
	case errors.Is(err, review.ErrCardNotFound), errors.Is(err, review.ErrForbidden):
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Карточка не найдена"))
	case err != nil:
		return err
	}
	if res.Duplicate {
		// повторное нажатие уже учтено
		return nil
	}

	lines := []string{fmt.Sprintf("✅ Следующее повторение через %d дн.", res.Card.IntervalDays)}
	if res.Outcome != nil {
		lines = append(lines, fmt.Sprintf("⭐ +%d XP · 🔥 серия %d", res.Outcome.XPGained, res.Outcome.CurrentStreak))
	}
	lines = append(lines, newMilestoneLines(res.Outcome)...)
	if err := b.sendMessage(tgbotapi.NewMessage(chatID, strings.Join(lines, "\n"))); err != nil {
		return err
	}
	return b.showDueCards(ctx, userID, chatID)
}

func (b *Bot) handleStats(ctx context.Context, userID, chatID int64) error {
	sum, err := b.progress.Summary(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get summary: %w", err)
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, formatSummary(sum)))
}

func formatSummary(sum *review.Summary) string {
	var text strings.Builder
	text.WriteString("📊 Ваша статистика\n\n")
	text.WriteString(fmt.Sprintf("Уровень %d · %d XP (%d%% до следующего)\n", sum.Level.Level, sum.Level.XP, sum.Level.Percent))
	text.WriteString(fmt.Sprintf("🔥 Серия: %d (рекорд %d)\n", sum.Profile.CurrentStreak, sum.Profile.LongestStreak))
	text.WriteString(fmt.Sprintf("❤️ Жизни: %d/%d\n\n", sum.Profile.Hearts, models.MaxHearts))
	text.WriteString("Сегодня:\n")
	text.WriteString(fmt.Sprintf("Повторений: %d · Уроков: %d · Новых слов: %d · Минут: %d\n",
		sum.Today.Reviews, sum.Today.Lessons, sum.Today.NewItems, sum.Today.Minutes))
	if sum.GoalMet {
		text.WriteString("✅ Дневная цель выполнена\n")
	}
	text.WriteString(fmt.Sprintf("\nКарточек к повторению: %d", sum.DueCount))
	return text.String()
}

func (b *Bot) handleMissions(ctx context.Context, userID, chatID int64) error {
	missions, err := b.progress.TodayMissions(ctx, userID)
	if err != nil {
		return err
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, formatMissions(missions)))
}

func formatMissions(missions []models.MissionProgress) string {
	if len(missions) == 0 {
		return "На сегодня миссий нет."
	}
	var text strings.Builder
	text.WriteString("🎯 Миссии на сегодня\n\n")
	for _, m := range missions {
		mark := "⬜"
		if m.IsCompleted {
			mark = "✅"
		}
		text.WriteString(fmt.Sprintf("%s %s: %d/%d (%d%%) · +%d XP\n",
			mark, m.Title, m.CurrentProgress, m.RequiredCount, m.Percent(), m.XPReward))
	}
	return text.String()
}

func (b *Bot) handleBadges(ctx context.Context, userID, chatID int64) error {
	badges, err := b.progress.Badges(ctx, userID)
	if err != nil {
		return err
	}
	if len(badges) == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Значков пока нет. Всё впереди!"))
	}
	var text strings.Builder
	text.WriteString("🏅 Ваши значки\n\n")
	for _, badge := range badges {
		text.WriteString(fmt.Sprintf("%s %s (%s)\n", badge.Icon, badge.Title, badge.EarnedAt.Format("02.01.2006")))
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, text.String()))
}

func (b *Bot) handleWeak(ctx context.Context, userID, chatID int64) error {
	areas, err := b.progress.WeakAreas(ctx, userID)
	if err != nil {
		return err
	}
	if len(areas) == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "💪 Слабых тем нет."))
	}
	var text strings.Builder
	text.WriteString("🧩 Стоит повторить\n\n")
	for _, a := range areas {
		text.WriteString(fmt.Sprintf("%s: %d слов · срочность %d%%\n", a.Category, a.Count, a.Urgency))
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, text.String()))
}

func (b *Bot) handleLesson(ctx context.Context, userID, chatID int64, args string) error {
	fields := strings.Fields(args)
	var nums []int64
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n < 0 {
			break
		}
		nums = append(nums, n)
	}
	if len(fields) != 3 || len(nums) != 3 || nums[2] == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Формат: /lesson <номер урока> <верных ответов> <всего вопросов>"))
	}

	res, err := b.progress.CompleteLesson(ctx, review.LessonEvent{
		UserID:     userID,
		LessonID:   nums[0],
		ScoreRatio: float64(nums[1]) / float64(nums[2]),
	})
	if err != nil {
		return err
	}

	lines := []string{"📘 Урок пройден"}
	if res.CardsCreated > 0 {
		lines = append(lines, fmt.Sprintf("Новых карточек: %d", res.CardsCreated))
	}
	if res.Outcome != nil {
		lines = append(lines, fmt.Sprintf("⭐ +%d XP · 🔥 серия %d", res.Outcome.XPGained, res.Outcome.CurrentStreak))
	}
	lines = append(lines, newMilestoneLines(res.Outcome)...)
	return b.sendMessage(tgbotapi.NewMessage(chatID, strings.Join(lines, "\n")))
}

func (b *Bot) handleSave(ctx context.Context, userID, chatID int64, args string) error {
	wordID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Формат: /save <номер слова>"))
	}

	res, err := b.progress.SaveItem(ctx, review.SaveEvent{UserID: userID, WordID: wordID})
	if errors.Is(err, review.ErrWordNotFound) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Слово не найдено"))
	}
	if err != nil {
		return err
	}
	if !res.Created {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Это слово уже в вашем словаре"))
	}

	lines := []string{"➕ Слово добавлено в словарь"}
	lines = append(lines, newMilestoneLines(res.Outcome)...)
	return b.sendMessage(tgbotapi.NewMessage(chatID, strings.Join(lines, "\n")))
}

func (b *Bot) handleRemind(ctx context.Context, userID, chatID int64, args string) error {
	args = strings.TrimSpace(strings.ToLower(args))
	if args == "" {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Пожалуйста, укажите час (0-23) или off: /remind <час|off>"))
	}
	if args == "off" {
		sum, err := b.progress.Summary(ctx, userID)
		if err != nil {
			return err
		}
		if err := b.progress.SetReminder(ctx, userID, false, sum.Profile.ReminderHour); err != nil {
			return err
		}
		return b.sendMessage(tgbotapi.NewMessage(chatID, "🔕 Напоминания выключены"))
	}

	hour, err := strconv.Atoi(args)
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Пожалуйста, укажите корректный час (0-23)"))
	}
	err = b.progress.SetReminder(ctx, userID, true, hour)
	if errors.Is(err, review.ErrInvalidHour) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Пожалуйста, укажите корректный час (0-23)"))
	}
	if err != nil {
		return err
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔔 Напоминание установлено на %d:00", hour)))
}

func (b *Bot) handleTimezone(ctx context.Context, userID, chatID int64, args string) error {
	tz := strings.TrimSpace(args)
	err := b.progress.SetTimezone(ctx, userID, tz)
	if errors.Is(err, review.ErrInvalidTimezone) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Неизвестный часовой пояс. Пример: /timezone Asia/Tashkent"))
	}
	if err != nil {
		return err
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, "🕒 Часовой пояс: "+tz))
}

func (b *Bot) handleImportCommand(userID, chatID int64) error {
	if !b.isAdmin(userID) || b.importer == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Эта команда доступна только администраторам."))
	}
	b.setAwaitingUpload(userID, true)
	return b.sendMessage(tgbotapi.NewMessage(chatID,
		"Отправьте файл .xlsx или .csv с колонками: title, type, required_count, xp_reward, active"))
}

// handleDocument imports a mission catalog uploaded by an admin
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	userID, chatID := message.From.ID, message.Chat.ID
	b.setAwaitingUpload(userID, false)

	ext := strings.ToLower(filepath.Ext(message.Document.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Нужен файл .xlsx или .csv"))
	}

	url, err := b.api.GetFileDirectURL(message.Document.FileID)
	if err != nil {
		return fmt.Errorf("failed to get file url: %w", err)
	}
	path, err := download(ctx, url, ext)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	report, err := b.importer(ctx, path)
	if err != nil {
		slog.Error("mission import failed", "user_id", userID, "error", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Ошибка импорта: "+err.Error()))
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, report))
}

// download saves a Telegram file into a temporary file with the given extension
func download(ctx context.Context, url, ext string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "missions-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return f.Name(), nil
}

// reminderText формирует текст напоминания с учетом количества карточек
func reminderText(count int) string {
	form := "карточек"
	switch {
	case count%10 == 1 && count%100 != 11:
		form = "карточка"
	case count%10 >= 2 && count%10 <= 4 && (count%100 < 12 || count%100 > 14):
		form = "карточки"
	}
	return fmt.Sprintf("🔔 У вас %d %s для повторения! Не теряйте серию.", count, form)
}
