package models

// QuizItem represents one entry of the quiz catalog (quiz/items.json)
type QuizItem struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// QuizStats is the persisted record of a user's quiz participation
type QuizStats struct {
	Streak         int     `json:"streak"`
	LastQuizDate   *string `json:"lastQuizDate"`
	TotalQuizzes   int     `json:"totalQuizzes"`
	CorrectAnswers int     `json:"correctAnswers"`
}

// Accuracy returns the rounded percentage of correct answers
func (s QuizStats) Accuracy() int {
	if s.TotalQuizzes <= 0 {
		return 0
	}
	return int(float64(s.CorrectAnswers)/float64(s.TotalQuizzes)*100 + 0.5)
}

// CompletedOn reports whether the last quiz was taken on the given day
func (s QuizStats) CompletedOn(day string) bool {
	return s.LastQuizDate != nil && *s.LastQuizDate == day
}

// QuizActivity stores one applied quiz submission
type QuizActivity struct {
	UserID    int64
	ItemName  string
	Selected  Category
	Correct   bool
	Timestamp int64
}

// MissedItem is an item a user has answered incorrectly, with a count
type MissedItem struct {
	ItemName string
	Misses   int
}

// Prediction is one ranked result from the image classifier
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// ClassificationCache stores the result for a photo already classified
type ClassificationCache struct {
	FileUniqueID string
	Label        string
	Category     Category
}
