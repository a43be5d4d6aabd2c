package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/compostbot/models"
)

const noClassificationText = "Sorry, I couldn't classify that photo. No classification yet, please try another picture."

// handlePhoto downloads the largest photo size, classifies it and replies
// with the disposal category
func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message) {
	startTime := time.Now()
	chatID := message.Chat.ID
	photo := message.Photo[len(message.Photo)-1]

	cached, ok, err := b.history.GetCachedClassification(ctx, photo.FileUniqueID)
	if err != nil {
		log.Printf("Error retrieving cached classification: %v", err)
	}
	if ok {
		log.Printf("Found cached classification for photo %s: %q", photo.FileUniqueID, cached.Label)
		b.sendMessage(chatID, formatResult(cached.Label, cached.Category, ""))
		return
	}

	b.sendMessage(chatID, "Classifying...")

	image, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		log.Printf("Error downloading photo %s: %v", photo.FileID, err)
		b.sendMessage(chatID, noClassificationText)
		return
	}

	label, err := b.classifier.Top(ctx, image)
	if err != nil {
		log.Printf("Error classifying photo %s: %v", photo.FileID, err)
		b.sendMessage(chatID, noClassificationText)
		return
	}

	category, keyword := b.keywords.Match(label)
	log.Printf("Classification: %q -> %s (keyword %q) in %v", label, category, keyword, time.Since(startTime))

	if err := b.history.CacheClassification(ctx, models.ClassificationCache{
		FileUniqueID: photo.FileUniqueID,
		Label:        label,
		Category:     category,
	}); err != nil {
		log.Printf("Error caching classification: %v", err)
	}

	b.sendMessage(chatID, formatResult(label, category, keyword))
}

// handleClassifyCommand categorizes a typed label without the image classifier
func (b *Bot) handleClassifyCommand(message *tgbotapi.Message, label string) {
	if label == "" {
		b.sendMessage(message.Chat.ID, "Usage: /classify <item>, for example /classify banana peel")
		return
	}
	category, keyword := b.keywords.Match(label)
	b.sendMessage(message.Chat.ID, formatResult(label, category, keyword))
}

func formatResult(label string, category models.Category, keyword string) string {
	if category == models.Unknown {
		return fmt.Sprintf("%s: Unable to classify object", label)
	}
	text := fmt.Sprintf("%s %s\n\nClassification: %s", category.Emoji(), category.Title(), label)
	if keyword != "" {
		text += fmt.Sprintf(" (matched %q)", keyword)
	}
	return text
}

// downloadFile fetches a Telegram file into memory
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("file larger than %d bytes", maxPhotoBytes)
	}
	return data, nil
}
