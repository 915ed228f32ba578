package cron

import (
	"context"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Notifier delivers reminder text over a named channel (console, telegram).
type Notifier interface {
	Deliver(ctx context.Context, channel, target, text string) error
}

// Scheduler runs enabled jobs on their schedules and delivers due
// reminders. The JSON stores stay the source of truth: the job set is
// re-read on every tick so edits made by other invocations are picked up.
type Scheduler struct {
	Jobs      *JobStore
	History   *HistoryStore
	Reminders *ReminderStore
	Notifier  Notifier
	Timeout   time.Duration
	Tick      time.Duration

	// Exec runs one job; nil means Execute.
	Exec func(ctx context.Context, job Job, timeout time.Duration) Run

	mu       sync.Mutex
	cron     *rcron.Cron
	entryMap map[string]registered // job name -> cron entry
	cancel   context.CancelFunc
	stopCh   chan struct{}
}

type registered struct {
	id       rcron.EntryID
	schedule string
	command  string
}

func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.stopCh = stopCh
	s.entryMap = make(map[string]registered)
	s.cron = rcron.New(rcron.WithParser(standardParser))
	s.mu.Unlock()

	if err := s.sync(runCtx); err != nil {
		log.Printf("[cron] warning: failed to load jobs: %v", err)
	}

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", len(s.entryMap))

	go s.tickLoop(runCtx)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
			return
		}
	}()

	return nil
}

// sync registers new or changed enabled jobs and drops removed or disabled
// ones.
func (s *Scheduler) sync(ctx context.Context) error {
	jobs, err := s.Jobs.List(JobFilter{EnabledOnly: true})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		want[j.Name] = j
	}
	for name, reg := range s.entryMap {
		j, ok := want[name]
		if !ok || j.Schedule != reg.schedule || j.Command != reg.command {
			s.cron.Remove(reg.id)
			delete(s.entryMap, name)
		}
	}
	for _, j := range jobs {
		if _, ok := s.entryMap[j.Name]; ok {
			continue
		}
		s.registerJob(ctx, j)
	}
	return nil
}

func (s *Scheduler) registerJob(ctx context.Context, job Job) {
	if job.Schedule == "@reboot" {
		go s.executeJob(ctx, job)
		s.entryMap[job.Name] = registered{schedule: job.Schedule, command: job.Command}
		return
	}
	jobCopy := job
	id, err := s.cron.AddFunc(job.Schedule, func() {
		s.executeJob(ctx, jobCopy)
	})
	if err != nil {
		log.Printf("[cron] failed to register job %s (%s): %v", job.Name, job.Schedule, err)
		return
	}
	s.entryMap[job.Name] = registered{id: id, schedule: job.Schedule, command: job.Command}
}

func (s *Scheduler) executeJob(ctx context.Context, job Job) {
	log.Printf("[cron] executing job %s (%s)", job.Name, job.ID)

	exec := s.Exec
	if exec == nil {
		exec = func(ctx context.Context, job Job, timeout time.Duration) Run {
			return Execute(ctx, job.Name, job.Command, timeout)
		}
	}
	run := exec(ctx, job, s.Timeout)

	if run.Status == RunSuccess {
		log.Printf("[cron] job %s ok in %dms: %s", job.Name, run.DurationMs, truncate(run.Output, 100))
	} else {
		log.Printf("[cron] job %s failed (exit %d): %s", job.Name, run.ExitCode, truncate(run.Error, 100))
	}

	if err := s.History.Record(run); err != nil {
		log.Printf("[cron] record history for %s: %v", job.Name, err)
	}
	if _, err := s.Jobs.RecordRun(job.Name); err != nil {
		log.Printf("[cron] update run count for %s: %v", job.Name, err)
	}
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	tick := s.Tick
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.deliverDue(ctx, time.Now())
	for {
		select {
		case now := <-ticker.C:
			if err := s.sync(ctx); err != nil {
				log.Printf("[cron] reload jobs: %v", err)
			}
			s.deliverDue(ctx, now)
		case <-ctx.Done():
			return
		}
	}
}

// deliverDue sends every due reminder. A failed delivery leaves the
// reminder due so the next tick retries it.
func (s *Scheduler) deliverDue(ctx context.Context, now time.Time) {
	if s.Reminders == nil || s.Notifier == nil {
		return
	}
	due, err := s.Reminders.Due(now)
	if err != nil {
		log.Printf("[cron] load reminders: %v", err)
		return
	}
	for _, r := range due {
		if err := s.Notifier.Deliver(ctx, r.Channel, r.Target, r.Message); err != nil {
			log.Printf("[cron] reminder %s via %s: %v", r.ID, r.Channel, err)
			continue
		}
		if _, err := s.Reminders.MarkSent(r.ID, now); err != nil {
			log.Printf("[cron] mark reminder %s sent: %v", r.ID, err)
		}
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopCh := s.stopCh
	s.cancel = nil
	s.stopCh = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stopCh != nil {
		close(stopCh)
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

// Registered lists the names of jobs currently scheduled.
func (s *Scheduler) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entryMap))
	for name := range s.entryMap {
		out = append(out, name)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
