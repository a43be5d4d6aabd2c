package bot

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/compostbot/models"
	"github.com/korjavin/compostbot/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type mockSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileBase string
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockSender) GetFileDirectURL(fileID string) (string, error) {
	return m.fileBase + "/" + fileID, nil
}

// texts returns the text of every sent message and edit, in order
func (m *mockSender) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

func (m *mockSender) last() string {
	t := m.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type mockClassifier struct {
	label string
	err   error
	calls int
}

func (m *mockClassifier) Top(_ context.Context, image []byte) (string, error) {
	m.calls++
	return m.label, m.err
}

type memStats struct {
	values map[int64]map[string]string
}

func newMemStats() *memStats {
	return &memStats{values: make(map[int64]map[string]string)}
}

func (m *memStats) Get(_ context.Context, userID int64, key string) (string, bool, error) {
	v, ok := m.values[userID][key]
	return v, ok, nil
}

func (m *memStats) Set(_ context.Context, userID int64, key, value string) error {
	if m.values[userID] == nil {
		m.values[userID] = make(map[string]string)
	}
	m.values[userID][key] = value
	return nil
}

func (m *memStats) ListUsers(_ context.Context, key string) ([]int64, error) {
	var users []int64
	for id, kv := range m.values {
		if _, ok := kv[key]; ok {
			users = append(users, id)
		}
	}
	return users, nil
}

type memHistory struct {
	activity []models.QuizActivity
	cache    map[string]models.ClassificationCache
}

func newMemHistory() *memHistory {
	return &memHistory{cache: make(map[string]models.ClassificationCache)}
}

func (m *memHistory) SaveQuizActivity(_ context.Context, a models.QuizActivity) error {
	m.activity = append(m.activity, a)
	return nil
}

func (m *memHistory) GetMostMissedItems(_ context.Context, userID int64, limit int) ([]models.MissedItem, error) {
	var out []models.MissedItem
	for _, a := range m.activity {
		if a.UserID == userID && !a.Correct && len(out) < limit {
			out = append(out, models.MissedItem{ItemName: a.ItemName, Misses: 1})
		}
	}
	return out, nil
}

func (m *memHistory) CacheClassification(_ context.Context, c models.ClassificationCache) error {
	m.cache[c.FileUniqueID] = c
	return nil
}

func (m *memHistory) GetCachedClassification(_ context.Context, id string) (models.ClassificationCache, bool, error) {
	c, ok := m.cache[id]
	return c, ok, nil
}

type testEnv struct {
	bot        *Bot
	sender     *mockSender
	classifier *mockClassifier
	stats      *memStats
	history    *memHistory
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog, err := quiz.LoadCatalog()
	require.NoError(t, err)

	env := &testEnv{
		sender:     &mockSender{},
		classifier: &mockClassifier{},
		stats:      newMemStats(),
		history:    newMemHistory(),
		now:        time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	tracker := quiz.NewTracker(env.stats, time.UTC)
	tracker.SetClock(func() time.Time { return env.now })

	env.bot = newBot(deps{
		api:        env.sender,
		classifier: env.classifier,
		catalog:    catalog,
		tracker:    tracker,
		stats:      env.stats,
		history:    env.history,
		rng:        rand.New(rand.NewSource(1)),
	})
	env.bot.spawn = func(fn func()) { fn() }
	return env
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 100,
		From:      &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
}

func answerCallback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, UserName: "tester"},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, cmd, args string
	}{
		{"/start", "start", ""},
		{"/classify banana peel", "classify", "banana peel"},
		{"/Quiz@CompostBot", "quiz", ""},
		{"  /stats  ", "stats", ""},
		{"hello", "", "hello"},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		assert.Equal(t, tt.cmd, cmd, tt.text)
		assert.Equal(t, tt.args, args, tt.text)
	}
}

func TestParseAnswer(t *testing.T) {
	idx, c, err := parseAnswer("answer:3:recycle")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, models.Recycle, c)

	for _, bad := range []string{"other:1:trash", "answer:1", "answer:x:trash", "answer:1:landfill"} {
		_, _, err := parseAnswer(bad)
		assert.Error(t, err, bad)
	}
}

func TestClassifyCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.handleMessage(ctx, textMessage(1, "/classify Banana"))
	assert.Contains(t, env.sender.last(), "Compost")
	assert.Contains(t, env.sender.last(), "Banana")

	env.bot.handleMessage(ctx, textMessage(1, "/classify hammer"))
	assert.Equal(t, "hammer: Unable to classify object", env.sender.last())

	env.bot.handleMessage(ctx, textMessage(1, "/classify"))
	assert.Contains(t, env.sender.last(), "Usage")
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	env.bot.handleMessage(context.Background(), textMessage(1, "what do I do"))
	assert.Contains(t, env.sender.last(), "Unknown command")
}

func TestPhotoClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.sender.fileBase = srv.URL
	env.classifier.label = "water bottle"
	ctx := context.Background()

	msg := textMessage(1, "")
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", FileUniqueID: "u-small"},
		{FileID: "large", FileUniqueID: "u-large"},
	}

	env.bot.handleMessage(ctx, msg)
	texts := env.sender.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Classifying...", texts[0])
	assert.Contains(t, texts[1], "Recycle")
	assert.Contains(t, texts[1], "water bottle")
	assert.Equal(t, models.Recycle, env.history.cache["u-large"].Category)

	// the same photo again is served from the cache
	env.bot.handleMessage(ctx, msg)
	assert.Equal(t, 1, env.classifier.calls)
	assert.Contains(t, env.sender.last(), "Recycle")
}

func TestPhotoClassifierFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.sender.fileBase = srv.URL
	env.classifier.err = errors.New("model not loaded")

	msg := textMessage(1, "")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "f", FileUniqueID: "u"}}
	env.bot.handleMessage(context.Background(), msg)

	assert.Equal(t, noClassificationText, env.sender.last())
	assert.Empty(t, env.history.cache)
}

func TestPhotoDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	env := newTestEnv(t)
	env.sender.fileBase = srv.URL

	msg := textMessage(1, "")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "f", FileUniqueID: "u"}}
	env.bot.handleMessage(context.Background(), msg)

	assert.Equal(t, noClassificationText, env.sender.last())
	assert.Equal(t, 0, env.classifier.calls)
}

// quizButtons returns the callback data of the last quiz keyboard sent
func quizButtons(t *testing.T, s *mockSender) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		msg, ok := s.sent[i].(tgbotapi.MessageConfig)
		if !ok {
			continue
		}
		kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok {
			continue
		}
		var data []string
		for _, row := range kb.InlineKeyboard {
			for _, btn := range row {
				data = append(data, *btn.CallbackData)
			}
		}
		return data
	}
	t.Fatal("no quiz keyboard sent")
	return nil
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = int64(42)

	env.bot.handleMessage(ctx, textMessage(user, "/quiz"))
	assert.Contains(t, env.sender.last(), "Today's Challenge")

	buttons := quizButtons(t, env.sender)
	require.Len(t, buttons, 3)
	idx, _, err := parseAnswer(buttons[0])
	require.NoError(t, err)
	item, ok := env.bot.catalog.Item(idx)
	require.True(t, ok)
	assert.Contains(t, env.sender.last(), item.Name)

	var correctButton string
	for _, b := range buttons {
		if strings.HasSuffix(b, ":"+string(item.Category)) {
			correctButton = b
		}
	}
	require.NotEmpty(t, correctButton)

	env.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: answerCallback(user, correctButton)})
	assert.Contains(t, env.sender.last(), "✅ Correct!")
	assert.Contains(t, env.sender.last(), "Current streak: 1 day")
	assert.JSONEq(t,
		`{"streak":1,"lastQuizDate":"2024-03-10","totalQuizzes":1,"correctAnswers":1}`,
		env.stats.values[user][quiz.StatsKey])
	require.Len(t, env.history.activity, 1)
	assert.True(t, env.history.activity[0].Correct)

	// answering again the same day changes nothing
	env.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: answerCallback(user, buttons[0])})
	assert.Contains(t, env.sender.last(), "Quiz Complete!")
	assert.Len(t, env.history.activity, 1)

	env.bot.handleMessage(ctx, textMessage(user, "/quiz"))
	assert.Contains(t, env.sender.last(), "Quiz Complete!")

	env.bot.handleMessage(ctx, textMessage(user, "/stats"))
	assert.Contains(t, env.sender.last(), "Day Streak: 1")
	assert.Contains(t, env.sender.last(), "Accuracy: 100%")
}

func TestQuizStreakNextDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const user = int64(5)
	env.stats.values[user] = map[string]string{
		quiz.StatsKey: `{"streak":5,"lastQuizDate":"2024-03-09","totalQuizzes":5,"correctAnswers":5}`,
	}

	item, _ := env.bot.catalog.Item(0)
	wrong := models.Trash
	if item.Category == models.Trash {
		wrong = models.Compost
	}

	env.bot.handleCallback(ctx, answerCallback(user, "answer:0:"+string(wrong)))
	assert.Contains(t, env.sender.last(), "❌ Incorrect")
	assert.Contains(t, env.sender.last(), "Current streak: 6 days")

	env.bot.handleMessage(ctx, textMessage(user, "/stats"))
	assert.Contains(t, env.sender.last(), "Accuracy: 83%")
	assert.Contains(t, env.sender.last(), "Most Missed Items")
}

func TestCallbackUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	env.bot.handleCallback(context.Background(), answerCallback(1, "answer:999:trash"))
	assert.Empty(t, env.stats.values)
	require.Len(t, env.sender.requests, 1)
}

func TestSendReminders(t *testing.T) {
	env := newTestEnv(t)
	env.stats.values[1] = map[string]string{
		quiz.StatsKey: `{"streak":3,"lastQuizDate":"2024-03-09","totalQuizzes":3,"correctAnswers":2}`,
	}
	env.stats.values[2] = map[string]string{
		quiz.StatsKey: `{"streak":8,"lastQuizDate":"2024-03-10","totalQuizzes":8,"correctAnswers":8}`,
	}

	env.bot.sendReminders(context.Background())

	env.sender.mu.Lock()
	defer env.sender.mu.Unlock()
	require.Len(t, env.sender.sent, 1)
	msg := env.sender.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(1), msg.ChatID)
	assert.Contains(t, msg.Text, "Current streak: 3 days")
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "🌱 Compost\n\nClassification: banana (matched \"banana\")",
		formatResult("banana", models.Compost, "banana"))
	assert.Equal(t, "golf ball: Unable to classify object", formatResult("golf ball", models.Unknown, ""))
}
