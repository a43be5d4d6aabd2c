package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/compostbot/models"
	"github.com/korjavin/compostbot/quiz"
)

// handleQuizCommand sends today's quiz item, or the completion notice if
// the user already answered today
func (b *Bot) handleQuizCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	stats := b.tracker.Load(ctx, message.From.ID)

	if stats.CompletedOn(b.tracker.Today()) {
		b.sendMessage(chatID, completedText(stats))
		return
	}

	idx, item := b.catalog.Random(b.rng)

	text := fmt.Sprintf("🧩 Today's Challenge\n\n%s\n%s\n\nWhere should this item go?", item.Name, item.Description)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = answerKeyboard(idx)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending quiz: %v", err)
	}
}

func answerKeyboard(itemIdx int) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range models.Categories {
		data := fmt.Sprintf("%s%d:%s", callbackPrefix, itemIdx, c)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Emoji()+" "+c.Title(), data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// parseAnswer decodes "answer:<itemIdx>:<category>"
func parseAnswer(data string) (int, models.Category, error) {
	rest, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return 0, "", fmt.Errorf("invalid callback prefix: %q", data)
	}
	idxPart, catPart, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, "", fmt.Errorf("invalid callback format: %q", data)
	}
	idx, err := strconv.Atoi(idxPart)
	if err != nil {
		return 0, "", fmt.Errorf("invalid item index in callback: %w", err)
	}
	selected := models.ParseCategory(catPart)
	if selected == models.Unknown {
		return 0, "", fmt.Errorf("invalid category in callback: %q", catPart)
	}
	return idx, selected, nil
}

// handleCallback processes an answer button press
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	log.Printf("Handling callback from user %s (ID: %d) with data: %s",
		callback.From.UserName, callback.From.ID, callback.Data)

	idx, selected, err := parseAnswer(callback.Data)
	if err != nil {
		log.Printf("Ignoring callback: %v", err)
		b.sendCallbackResponse(callback.ID, "")
		return
	}

	item, ok := b.catalog.Item(idx)
	if !ok {
		log.Printf("Quiz item %d not found", idx)
		b.sendCallbackResponse(callback.ID, "This quiz is no longer available.")
		return
	}

	userID := callback.From.ID
	stats, applied := b.tracker.Submit(ctx, userID, selected, item)
	if !applied {
		b.sendCallbackResponse(callback.ID, "You've already completed today's quiz.")
		if callback.Message != nil {
			b.sendMessage(callback.Message.Chat.ID, completedText(stats))
		}
		return
	}

	correct := selected == item.Category
	b.sendCallbackResponse(callback.ID, "Answer recorded")

	if err := b.history.SaveQuizActivity(ctx, models.QuizActivity{
		UserID:   userID,
		ItemName: item.Name,
		Selected: selected,
		Correct:  correct,
	}); err != nil {
		log.Printf("Error saving quiz activity: %v", err)
	}

	if callback.Message != nil {
		b.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, resultText(item, selected, correct, stats))
	}
}

func resultText(item models.QuizItem, selected models.Category, correct bool, stats models.QuizStats) string {
	var text string
	if correct {
		text = fmt.Sprintf("✅ Correct!\n\nGreat job! You correctly identified that %s goes in %s.", item.Name, item.Category)
	} else {
		text = fmt.Sprintf("❌ Incorrect\n\nYou answered %s. Actually, %s should go in %s.", selected, item.Name, item.Category)
	}
	return text + fmt.Sprintf("\n\nCurrent streak: %d %s 🔥", stats.Streak, days(stats.Streak))
}

func completedText(stats models.QuizStats) string {
	return fmt.Sprintf("Quiz Complete!\n\nYou've already completed today's quiz. Come back tomorrow for a new challenge!\n\nCurrent streak: %d %s",
		stats.Streak, days(stats.Streak))
}

func days(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// handleStatsCommand shows streak, totals, accuracy and the most missed items
func (b *Bot) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) {
	stats := b.tracker.Load(ctx, message.From.ID)

	text := fmt.Sprintf(`📊 Your Quiz Statistics:

Day Streak: %d
Total Quizzes: %d
Correct Answers: %d ✅
Accuracy: %d%%`, stats.Streak, stats.TotalQuizzes, stats.CorrectAnswers, stats.Accuracy())

	if stats.TotalQuizzes > 0 {
		missed, err := b.history.GetMostMissedItems(ctx, message.From.ID, 3)
		if err != nil {
			log.Printf("Error getting missed items: %v", err)
		}
		if len(missed) > 0 {
			text += "\n\nMost Missed Items:\n"
			for i, m := range missed {
				text += fmt.Sprintf("%d. %s (%d×)\n", i+1, m.ItemName, m.Misses)
			}
		}
	}

	b.sendMessage(message.Chat.ID, text)
}

// sendReminders nudges every user with quiz history who has not played today.
// In private chats the chat ID equals the user ID.
func (b *Bot) sendReminders(ctx context.Context) {
	users, err := b.stats.ListUsers(ctx, quiz.StatsKey)
	if err != nil {
		log.Printf("Error listing users for reminder: %v", err)
		return
	}

	today := b.tracker.Today()
	sent := 0
	for _, userID := range users {
		stats := b.tracker.Load(ctx, userID)
		if stats.CompletedOn(today) {
			continue
		}
		b.sendMessage(userID, fmt.Sprintf("🌱 Your daily compost quiz is waiting! Current streak: %d %s. Use /quiz to play.",
			stats.Streak, days(stats.Streak)))
		sent++
	}
	log.Printf("Sent %d quiz reminders (%d users)", sent, len(users))
}
