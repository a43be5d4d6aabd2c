package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler runs one daily job at a fixed local time
type Scheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New creates a scheduler evaluating times in loc
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{cron: cron.New(cron.WithLocation(loc)), loc: loc}
}

// Daily schedules fn at HH:MM every day, replacing any previous job
func (s *Scheduler) Daily(timeStr string, fn func()) error {
	spec, err := cronSpec(timeStr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	return nil
}

// Next returns the next time the daily job fires, zero if none is scheduled
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Schedule.Next(time.Now().In(s.loc))
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

// cronSpec turns HH:MM into "minute hour * * *"
func cronSpec(timeStr string) (string, error) {
	m := timeRegex.FindStringSubmatch(timeStr)
	if len(m) != 3 {
		return "", fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
