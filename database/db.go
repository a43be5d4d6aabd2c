package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/korjavin/compostbot/models"
	_ "github.com/mattn/go-sqlite3"
)

// DB handles all database operations
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes tables
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	// Per-user key-value pairs (quiz stats live under "quizStats")
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			user_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, key)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_activity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			selected TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Photos already classified, keyed by Telegram's stable file id
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_cache (
			file_unique_id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			category TEXT NOT NULL
		)
	`)
	return err
}

// Get returns the value stored for a user's key
func (db *DB) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE user_id = ? AND key = ?",
		userID, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value under a user's key, replacing any previous value
func (db *DB) Set(ctx context.Context, userID int64, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)",
		userID, key, value, time.Now().Unix(),
	)
	return err
}

// ListUsers returns the IDs of users that have a value for key
func (db *DB) ListUsers(ctx context.Context, key string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id FROM kv WHERE key = ? ORDER BY user_id", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// SaveQuizActivity records an applied quiz answer
func (db *DB) SaveQuizActivity(ctx context.Context, a models.QuizActivity) error {
	ts := a.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO quiz_activity (user_id, item_name, selected, correct, timestamp) VALUES (?, ?, ?, ?, ?)",
		a.UserID, a.ItemName, string(a.Selected), a.Correct, ts,
	)
	return err
}

// GetMostMissedItems gets the quiz items most frequently answered incorrectly
func (db *DB) GetMostMissedItems(ctx context.Context, userID int64, limit int) ([]models.MissedItem, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_name, COUNT(*) as count
		FROM quiz_activity
		WHERE user_id = ? AND correct = 0
		GROUP BY item_name
		ORDER BY count DESC, item_name ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.MissedItem
	for rows.Next() {
		var m models.MissedItem
		if err := rows.Scan(&m.ItemName, &m.Misses); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CacheClassification stores the label and category for a photo
func (db *DB) CacheClassification(ctx context.Context, c models.ClassificationCache) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO classification_cache (file_unique_id, label, category) VALUES (?, ?, ?)",
		c.FileUniqueID, c.Label, string(c.Category),
	)
	return err
}

// GetCachedClassification retrieves a cached photo classification
func (db *DB) GetCachedClassification(ctx context.Context, fileUniqueID string) (models.ClassificationCache, bool, error) {
	c := models.ClassificationCache{FileUniqueID: fileUniqueID}
	var category string
	err := db.conn.QueryRowContext(ctx,
		"SELECT label, category FROM classification_cache WHERE file_unique_id = ?",
		fileUniqueID,
	).Scan(&c.Label, &category)

	if errors.Is(err, sql.ErrNoRows) {
		return models.ClassificationCache{}, false, nil // Not cached yet
	}
	if err != nil {
		return models.ClassificationCache{}, false, err
	}
	c.Category = models.Category(category)
	return c, true, nil
}
