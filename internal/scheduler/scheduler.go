package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"helphub/internal/application/orchestrators"
)

// DefaultPruneSchedule runs the retention job daily at 03:30:00 UTC.
const DefaultPruneSchedule = "0 30 3 * * *"

// jobTimeout bounds a single scheduled run.
const jobTimeout = time.Minute

// Config holds the job schedules. Specs use six fields, seconds first.
type Config struct {
	PruneSchedule string
	Retention     time.Duration
}

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	pruner orchestrators.RetrievalLogPruner
	cfg    Config
	now    func() time.Time
}

// New creates a scheduler and registers its jobs.
// PRE: pruner is set
// POST: Returns a stopped scheduler, or an error if a schedule does not parse
func New(cfg Config, pruner orchestrators.RetrievalLogPruner) (*Scheduler, error) {
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = orchestrators.DefaultRetrievalRetention
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		pruner: pruner,
		cfg:    cfg,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.PruneSchedule, s.pruneRetrievalLog); err != nil {
		return nil, fmt.Errorf("register prune job %q: %w", cfg.PruneSchedule, err)
	}
	return s, nil
}

// pruneRetrievalLog is the retention job body.
func (s *Scheduler) pruneRetrievalLog() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, err := orchestrators.ExecutePruneRetrievalLog(ctx,
		orchestrators.PruneRetrievalLogInput{Retention: s.cfg.Retention},
		orchestrators.PruneRetrievalLogDeps{Store: s.pruner, Now: s.now})
	if err != nil {
		slog.Error("scheduler_event", "event", "job_failed", "job", "prune_retrieval_log", "error", err)
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler_event", "event", "started", "jobs", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler_event", "event", "stopped")
}

// NextRun reports when the retention job fires next. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	for _, e := range s.cron.Entries() {
		return e.Next
	}
	return time.Time{}
}
