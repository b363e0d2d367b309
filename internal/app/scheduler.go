package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// jobTimeout bounds a single job run.
const jobTimeout = 5 * time.Minute

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler runs jobs on standard five-field cron expressions.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With(slog.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job on schedule, e.g. "0 4 * * *" or "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", job.Name(), err)
	}
	s.logger.Info("job registered",
		slog.String("job", job.Name()),
		slog.String("schedule", schedule),
	)
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info("running job now", slog.String("job", job.Name()))
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	return job.Run(ctx)
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug("job running", slog.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed",
			slog.String("job", job.Name()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("job completed",
		slog.String("job", job.Name()),
		slog.Duration("took", time.Since(start)),
	)
}

// Run starts the scheduler and blocks until ctx is cancelled. Running jobs
// get their own context cancelled and are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// Archiver exports one day of history. *s3blob.Archiver satisfies it.
type Archiver interface {
	ArchiveTrades(ctx context.Context, day time.Time) (int, error)
	ArchiveEvents(ctx context.Context, day time.Time) (int, error)
}

// ArchiveJob archives the previous UTC day.
type ArchiveJob struct {
	Archiver Archiver
	Logger   *slog.Logger
	Now      func() time.Time
}

func (j *ArchiveJob) Name() string { return "archive" }

func (j *ArchiveJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	day := now().UTC().AddDate(0, 0, -1)

	trades, tErr := j.Archiver.ArchiveTrades(ctx, day)
	events, eErr := j.Archiver.ArchiveEvents(ctx, day)
	if err := errors.Join(tErr, eErr); err != nil {
		return fmt.Errorf("archive %s: %w", day.Format(time.DateOnly), err)
	}
	if j.Logger != nil {
		j.Logger.InfoContext(ctx, "day archived",
			slog.String("day", day.Format(time.DateOnly)),
			slog.Int("trades", trades),
			slog.Int("events", events),
		)
	}
	return nil
}

// SnapshotSource produces the current metrics snapshot.
// *service.TradeService satisfies it.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// SnapshotJob persists a metrics snapshot to the mirrors.
type SnapshotJob struct {
	Source   SnapshotSource
	Recorder domain.Recorder
}

func (j *SnapshotJob) Name() string { return "snapshot" }

func (j *SnapshotJob) Run(ctx context.Context) error {
	if err := j.Recorder.RecordSnapshot(ctx, j.Source.Snapshot()); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}
