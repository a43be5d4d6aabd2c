package quiz

import (
	"fmt"
	"math"
	"time"

	"github.com/korjavin/compostbot/models"
)

// DateLayout is the ISO calendar date format of QuizStats.LastQuizDate
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Advance applies one answer submission made on today.
// It returns false, and the stats unchanged, if a quiz was already
// completed today.
func Advance(stats models.QuizStats, today string, selected models.Category, item models.QuizItem) (models.QuizStats, bool) {
	if stats.CompletedOn(today) {
		return stats, false
	}

	streak := 1
	if stats.LastQuizDate != nil && *stats.LastQuizDate != "" {
		// an unparseable date breaks the streak
		if gap, err := DayGap(*stats.LastQuizDate, today); err == nil && gap == 1 {
			streak = stats.Streak + 1
		}
	}

	date := today
	next := models.QuizStats{
		Streak:         streak,
		LastQuizDate:   &date,
		TotalQuizzes:   stats.TotalQuizzes + 1,
		CorrectAnswers: stats.CorrectAnswers,
	}
	if selected == item.Category {
		next.CorrectAnswers++
	}
	return next, true
}

// DayGap returns the absolute difference between two ISO dates in days,
// rounded up from the elapsed time between their midnights (UTC).
func DayGap(from, to string) (int, error) {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", from, err)
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", to, err)
	}

	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(float64(diff) / float64(day))), nil
}

// Today formats now as an ISO date in loc
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}
