// Package scheduler runs periodic background tasks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emergent-company/jobmanager/pkg/logger"
)

const defaultTaskTimeout = time.Minute

// TaskFunc is a scheduled unit of work
type TaskFunc func(ctx context.Context) error

// Scheduler wraps a seconds-precision cron. Tasks are keyed by name;
// adding a task under an existing name replaces it.
type Scheduler struct {
	cron        *cron.Cron
	log         *slog.Logger
	tasks       map[string]cron.EntryID
	taskTimeout time.Duration
	mu          sync.RWMutex
	running     bool
}

func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		log:         log.With(logger.Scope("scheduler")),
		tasks:       make(map[string]cron.EntryID),
		taskTimeout: defaultTaskTimeout,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop waits for running tasks to finish, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timeout")
	}
	s.running = false
	return nil
}

// AddCronTask schedules task with a six-field cron expression
// ("second minute hour day-of-month month day-of-week")
func (s *Scheduler) AddCronTask(name, schedule string, task TaskFunc) error {
	return s.add(name, schedule, task)
}

// AddIntervalTask schedules task every interval
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration, task TaskFunc) error {
	if interval < time.Second {
		return fmt.Errorf("task %s: interval %s is below one second", name, interval)
	}
	return s.add(name, "@every "+interval.String(), task)
}

func (s *Scheduler) add(name, schedule string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.tasks[name]; ok {
		s.cron.Remove(id)
		delete(s.tasks, name)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.runTask(name, task) })
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	s.tasks[name] = id
	s.log.Info("added scheduled task",
		slog.String("name", name),
		slog.String("schedule", schedule))
	return nil
}

func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.tasks[name]; ok {
		s.cron.Remove(id)
		delete(s.tasks, name)
		s.log.Info("removed task", slog.String("name", name))
	}
}

// ListTasks returns task names in sorted order
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runTask(name string, task TaskFunc) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.taskTimeout)
	defer cancel()

	if err := task(ctx); err != nil {
		s.log.Warn("scheduled task failed",
			slog.String("name", name),
			slog.Duration("duration", time.Since(start)),
			logger.Error(err))
		return
	}
	s.log.Debug("scheduled task completed",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))
}
