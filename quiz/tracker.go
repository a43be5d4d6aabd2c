package quiz

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/korjavin/compostbot/models"
)

// StatsKey is the key-value key holding a user's QuizStats
const StatsKey = "quizStats"

// Store is the key-value persistence used by the Tracker.
// Get reports ok=false when the key has never been written.
type Store interface {
	Get(ctx context.Context, userID int64, key string) (value string, ok bool, err error)
	Set(ctx context.Context, userID int64, key, value string) error
}

// Tracker keeps per-user quiz stats and persists every applied submission
type Tracker struct {
	store Store
	loc   *time.Location
	now   func() time.Time

	mu    sync.Mutex
	stats map[int64]models.QuizStats
}

// NewTracker creates a tracker computing "today" in loc
func NewTracker(store Store, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		store: store,
		loc:   loc,
		now:   time.Now,
		stats: make(map[int64]models.QuizStats),
	}
}

// Today returns the current ISO date in the tracker's timezone
func (t *Tracker) Today() string {
	return Today(t.now(), t.loc)
}

// Load reads the user's stats from the store. Read failures and corrupt
// records are logged and yield zero stats.
func (t *Tracker) Load(ctx context.Context, userID int64) models.QuizStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.read(ctx, userID)
	t.stats[userID] = stats
	return stats
}

// Stats returns the in-memory stats, loading them on first use
func (t *Tracker) Stats(ctx context.Context, userID int64) models.QuizStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if stats, ok := t.stats[userID]; ok {
		return stats
	}
	stats := t.read(ctx, userID)
	t.stats[userID] = stats
	return stats
}

// Submit records an answer for today. The boolean is false when today's
// quiz was already completed and nothing changed. A failed write is logged
// and the in-memory stats are updated anyway.
func (t *Tracker) Submit(ctx context.Context, userID int64, selected models.Category, item models.QuizItem) (models.QuizStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.stats[userID]
	if !ok {
		current = t.read(ctx, userID)
	}

	next, applied := Advance(current, t.Today(), selected, item)
	if !applied {
		t.stats[userID] = current
		return current, false
	}

	if err := t.write(ctx, userID, next); err != nil {
		log.Printf("Error saving quiz stats for user %d: %v", userID, err)
	}
	t.stats[userID] = next
	return next, true
}

func (t *Tracker) read(ctx context.Context, userID int64) models.QuizStats {
	raw, ok, err := t.store.Get(ctx, userID, StatsKey)
	if err != nil {
		log.Printf("Error loading quiz stats for user %d: %v", userID, err)
		return models.QuizStats{}
	}
	if !ok || raw == "" {
		return models.QuizStats{}
	}

	var stats models.QuizStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		log.Printf("Corrupt quiz stats for user %d, starting over: %v", userID, err)
		return models.QuizStats{}
	}
	if stats.Streak < 0 || stats.TotalQuizzes < 0 || stats.CorrectAnswers < 0 || stats.CorrectAnswers > stats.TotalQuizzes {
		log.Printf("Inconsistent quiz stats for user %d, starting over: %+v", userID, stats)
		return models.QuizStats{}
	}
	return stats
}

func (t *Tracker) write(ctx context.Context, userID int64, stats models.QuizStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, userID, StatsKey, string(data))
}

// SetClock replaces the time source. It must be called before the tracker
// is shared.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}
