// Package schedule arms scheduled callbacks and recurring reminders and
// feeds them through the message router when they fire, so they get the same
// smart operator routing as any other message.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MateDort/switchboard/internal/courier"
	"github.com/MateDort/switchboard/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Scheduler owns the timer and cron machinery for Callback rows. Rows are
// persisted before arming, so reminders survive daemon restarts.
type Scheduler struct {
	db     *gorm.DB
	router *courier.Router
	cron   *cron.Cron

	mu      sync.Mutex
	timers  map[uint]*time.Timer
	entries map[uint]cron.EntryID
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB     *gorm.DB
	Router *courier.Router
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("schedule: db is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("schedule: router is required")
	}
	return &Scheduler{
		db:      opts.DB,
		router:  opts.Router,
		cron:    cron.New(),
		timers:  make(map[uint]*time.Timer),
		entries: make(map[uint]cron.EntryID),
	}, nil
}

// Start re-arms all unfired callbacks from the database and starts the cron
// runner. One-shot callbacks whose fire time already passed fire immediately.
func (s *Scheduler) Start() error {
	var rows []models.Callback
	if err := s.db.Where("fired = ?", false).Find(&rows).Error; err != nil {
		return fmt.Errorf("schedule: load callbacks: %w", err)
	}
	for _, row := range rows {
		if err := s.arm(row); err != nil {
			log.Printf("schedule: re-arm callback %d: %v", row.ID, err)
		}
	}
	s.cron.Start()
	log.Printf("schedule: started with %d callbacks", len(rows))
	return nil
}

// Stop stops the cron runner and all one-shot timers.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// At schedules a one-shot callback, persisting it first.
func (s *Scheduler) At(fireAt time.Time, target, body string) (uint, error) {
	row := models.Callback{
		Target:    target,
		Body:      body,
		FireAt:    &fireAt,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("schedule: create callback: %w", err)
	}
	if err := s.arm(row); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// Every schedules a recurring reminder from a 5-field cron expression.
func (s *Scheduler) Every(cronExpr, target, body string) (uint, error) {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return 0, fmt.Errorf("schedule: parse %q: %w", cronExpr, err)
	}
	row := models.Callback{
		Target:    target,
		Body:      body,
		CronExpr:  cronExpr,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("schedule: create reminder: %w", err)
	}
	if err := s.arm(row); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// Cancel disarms a callback and marks it fired so it never re-arms. Safe to
// call concurrently with the callback firing: whichever lands first wins.
func (s *Scheduler) Cancel(id uint) error {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	result := s.db.Model(&models.Callback{}).
		Where("id = ? AND fired = ?", id, false).
		Update("fired", true)
	if result.Error != nil {
		return fmt.Errorf("schedule: cancel %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("schedule: callback %d not found or already fired", id)
	}
	return nil
}

// List returns all unfired callbacks.
func (s *Scheduler) List() ([]models.Callback, error) {
	var rows []models.Callback
	if err := s.db.Where("fired = ?", false).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("schedule: list callbacks: %w", err)
	}
	return rows, nil
}

// arm starts the timer or cron entry for one row.
func (s *Scheduler) arm(row models.Callback) error {
	switch {
	case row.CronExpr != "":
		entryID, err := s.cron.AddFunc(row.CronExpr, func() {
			s.fire(row, false)
		})
		if err != nil {
			return fmt.Errorf("schedule: arm reminder %d: %w", row.ID, err)
		}
		s.mu.Lock()
		s.entries[row.ID] = entryID
		s.mu.Unlock()
		return nil
	case row.FireAt != nil:
		delay := time.Until(*row.FireAt)
		if delay < 0 {
			delay = 0
		}
		timer := time.AfterFunc(delay, func() {
			s.fire(row, true)
		})
		s.mu.Lock()
		s.timers[row.ID] = timer
		s.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("schedule: callback %d has neither fire_at nor cron_expr", row.ID)
	}
}

// fire routes one callback delivery. One-shot rows are marked fired first,
// so a concurrent Cancel makes this a no-op.
func (s *Scheduler) fire(row models.Callback, oneShot bool) {
	if oneShot {
		result := s.db.Model(&models.Callback{}).
			Where("id = ? AND fired = ?", row.ID, false).
			Update("fired", true)
		if result.Error != nil {
			log.Printf("schedule: mark fired %d: %v", row.ID, result.Error)
			return
		}
		if result.RowsAffected == 0 {
			return
		}
		s.mu.Lock()
		delete(s.timers, row.ID)
		s.mu.Unlock()
	} else {
		// A reminder cancelled moments ago may still fire once from the
		// cron runner; the fired flag settles the race.
		var current models.Callback
		if err := s.db.Select("fired").First(&current, row.ID).Error; err == nil && current.Fired {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	msg := courier.NewMessage("", row.Target, row.Body, courier.KindCallback)
	s.router.Route(ctx, msg)
}
