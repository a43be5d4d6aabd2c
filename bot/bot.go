package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/compostbot/categorizer"
	"github.com/korjavin/compostbot/classifier"
	"github.com/korjavin/compostbot/config"
	"github.com/korjavin/compostbot/database"
	"github.com/korjavin/compostbot/models"
	"github.com/korjavin/compostbot/quiz"
	"github.com/korjavin/compostbot/scheduler"
)

// Sender is the part of the Telegram API the bot talks to
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Classifier labels an image
type Classifier interface {
	Top(ctx context.Context, image []byte) (string, error)
}

// StatsStore persists quiz stats and can enumerate the users that have them
type StatsStore interface {
	quiz.Store
	ListUsers(ctx context.Context, key string) ([]int64, error)
}

// HistoryStore keeps quiz activity and the photo classification cache
type HistoryStore interface {
	SaveQuizActivity(ctx context.Context, a models.QuizActivity) error
	GetMostMissedItems(ctx context.Context, userID int64, limit int) ([]models.MissedItem, error)
	CacheClassification(ctx context.Context, c models.ClassificationCache) error
	GetCachedClassification(ctx context.Context, fileUniqueID string) (models.ClassificationCache, bool, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api        Sender
	client     *tgbotapi.BotAPI
	classifier Classifier
	keywords   *categorizer.Table
	catalog    *quiz.Catalog
	tracker    *quiz.Tracker
	stats      StatsStore
	history    HistoryStore
	httpClient *http.Client
	rng        *rand.Rand
	scheduler  *scheduler.Scheduler
	closers    []io.Closer

	// spawn runs slow handlers off the update loop
	spawn func(func())
}

const (
	cmdStart    = "start"
	cmdHelp     = "help"
	cmdQuiz     = "quiz"
	cmdStats    = "stats"
	cmdClassify = "classify"

	callbackPrefix = "answer:"

	maxPhotoBytes = 20 << 20
)

// deps bundles collaborators so tests can build a Bot without Telegram
type deps struct {
	api        Sender
	classifier Classifier
	catalog    *quiz.Catalog
	tracker    *quiz.Tracker
	stats      StatsStore
	history    HistoryStore
	httpClient *http.Client
	rng        *rand.Rand
}

func newBot(d deps) *Bot {
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{
		api:        d.api,
		classifier: d.classifier,
		keywords:   categorizer.Default(),
		catalog:    d.catalog,
		tracker:    d.tracker,
		stats:      d.stats,
		history:    d.history,
		httpClient: d.httpClient,
		rng:        d.rng,
		spawn:      goSafe,
	}
}

// New creates a new bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create bot API
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	// Set bot debugging mode
	botAPI.Debug = os.Getenv("DEBUG") == "true"

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers := []io.Closer{db}

	var stats StatsStore = db
	if cfg.StorageBackend == config.BackendRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := database.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword)
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		stats = rs
		closers = append(closers, rs)
		log.Printf("Quiz stats stored in Redis at %s", cfg.RedisAddr)
	}

	// Load quiz items
	catalog, err := quiz.LoadCatalog()
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("failed to load quiz items: %w", err)
	}

	log.Printf("Loaded %d quiz items", catalog.Len())

	b := newBot(deps{
		api:        botAPI,
		classifier: classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout),
		catalog:    catalog,
		tracker:    quiz.NewTracker(stats, cfg.Location),
		stats:      stats,
		history:    db,
	})
	b.client = botAPI
	b.closers = closers

	if cfg.ReminderTime != "" {
		sched := scheduler.New(cfg.Location)
		if err := sched.Daily(cfg.ReminderTime, func() {
			b.sendReminders(context.Background())
		}); err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to schedule reminder: %w", err)
		}
		b.scheduler = sched
		log.Printf("Daily quiz reminder scheduled at %s (%s)", cfg.ReminderTime, cfg.Location)
	}

	return b, nil
}

// Start starts the bot and listens for updates until Stop is called
func (b *Bot) Start() {
	log.Println("Starting bot polling...")

	if b.scheduler != nil {
		b.scheduler.Start()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)

	for update := range updates {
		b.handleUpdate(context.Background(), update)
	}
	log.Println("Bot polling stopped")
}

// Stop stops polling and the reminder, and closes storage
func (b *Bot) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
	if b.client != nil {
		b.client.StopReceivingUpdates()
	}
	closeAll(b.closers)
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	} else if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	log.Printf("Received message from %s (ID: %d): %s", message.From.UserName, message.From.ID, message.Text)

	if len(message.Photo) > 0 {
		b.spawn(func() { b.handlePhoto(ctx, message) })
		return
	}

	cmd, args := parseCommand(message.Text)
	switch cmd {
	case cmdStart, cmdHelp:
		b.sendMessage(message.Chat.ID, welcomeText)
	case cmdQuiz:
		b.handleQuizCommand(ctx, message)
	case cmdStats:
		b.handleStatsCommand(ctx, message)
	case cmdClassify:
		b.handleClassifyCommand(message, args)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Send me a photo, or use /quiz for the daily quiz and /help for assistance.")
	}
}

const welcomeText = `Welcome to CompostBot! 🌱

Send me a photo of an item and I'll tell you whether it goes in compost, recycle or trash.

Commands:
/quiz - Take today's compost quiz
/stats - View your streak and statistics
/classify <item> - Categorize an item by name
/help - Show this message`

// parseCommand splits "/cmd@bot args" into "cmd" and "args"
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ := strings.Cut(text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// sendCallbackResponse sends a response to a callback query
func (b *Bot) sendCallbackResponse(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		log.Printf("Error sending callback response: %v", err)
	}
}

// editMessage replaces the text of an existing message and drops its keyboard
func (b *Bot) editMessage(chatID int64, messageID int, newText string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, newText)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Error editing message: %v", err)
	}
}

func goSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Recovered from panic in handler: %v", r)
			}
		}()
		fn()
	}()
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Printf("Error closing %T: %v", c, err)
		}
	}
}
