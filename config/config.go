package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var reminderTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Config holds all the configuration for the application
type Config struct {
	BotToken          string
	ClassifierURL     string
	ClassifierTimeout time.Duration
	StorageBackend    string
	DatabasePath      string
	RedisAddr         string
	RedisPassword     string
	Location          *time.Location
	ReminderTime      string
}

// Load reads a .env file if present and then loads the configuration from
// environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using system environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	botToken := getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, errors.New("BOT_TOKEN environment variable is required")
	}

	classifierURL := getenv("CLASSIFIER_URL")
	if classifierURL == "" {
		return nil, errors.New("CLASSIFIER_URL environment variable is required")
	}

	timeout := 30 * time.Second
	if v := getenv("CLASSIFIER_TIMEOUT_SEC"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("CLASSIFIER_TIMEOUT_SEC must be a positive integer, got %q", v)
		}
		timeout = time.Duration(secs) * time.Second
	}

	backend := getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = BackendSQLite
	}
	if backend != BackendSQLite && backend != BackendRedis {
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendRedis, backend)
	}

	// Set database path with default
	dbPath := getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/compostbot.db"
	}

	redisAddr := getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	tz := getenv("TIMEZONE")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	reminder := getenv("REMINDER_TIME")
	if reminder != "" && !reminderTimeRegex.MatchString(reminder) {
		return nil, fmt.Errorf("REMINDER_TIME must be in HH:MM format, got %q", reminder)
	}

	return &Config{
		BotToken:          botToken,
		ClassifierURL:     classifierURL,
		ClassifierTimeout: timeout,
		StorageBackend:    backend,
		DatabasePath:      dbPath,
		RedisAddr:         redisAddr,
		RedisPassword:     getenv("REDIS_PASSWORD"),
		Location:          loc,
		ReminderTime:      reminder,
	}, nil
}
