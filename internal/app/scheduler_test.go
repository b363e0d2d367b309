package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

type fakeArchiver struct {
	days      []time.Time
	tradesErr error
}

func (f *fakeArchiver) ArchiveTrades(_ context.Context, day time.Time) (int, error) {
	f.days = append(f.days, day)
	return 3, f.tradesErr
}

func (f *fakeArchiver) ArchiveEvents(_ context.Context, day time.Time) (int, error) {
	f.days = append(f.days, day)
	return 7, nil
}

func TestArchiveJob_ArchivesYesterday(t *testing.T) {
	arch := &fakeArchiver{}
	job := &ArchiveJob{
		Archiver: arch,
		Logger:   quietLogger(),
		Now:      func() time.Time { return time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC) },
	}
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, arch.days, 2)
	for _, d := range arch.days {
		assert.Equal(t, "2026-03-01", d.Format(time.DateOnly))
	}
}

func TestArchiveJob_StillArchivesEventsWhenTradesFail(t *testing.T) {
	arch := &fakeArchiver{tradesErr: errors.New("bucket gone")}
	job := &ArchiveJob{Archiver: arch}
	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "bucket gone")
	assert.Len(t, arch.days, 2)
}

type staticSnapshot struct{ snap domain.Snapshot }

func (s staticSnapshot) Snapshot() domain.Snapshot { return s.snap }

type snapshotRecorder struct {
	domain.NopRecorder
	got []domain.Snapshot
}

func (r *snapshotRecorder) RecordSnapshot(_ context.Context, s domain.Snapshot) error {
	r.got = append(r.got, s)
	return nil
}

func TestSnapshotJob(t *testing.T) {
	rec := &snapshotRecorder{}
	snap := domain.Snapshot{Risk: domain.RiskStatus{Bankroll: 10000}}
	job := &SnapshotJob{Source: staticSnapshot{snap}, Recorder: rec}
	require.NoError(t, job.Run(context.Background()))
	require.Len(t, rec.got, 1)
	assert.Equal(t, 10000.0, rec.got[0].Risk.Bankroll)
}

type countingJob struct{ runs atomic.Int32 }

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	s := NewScheduler(quietLogger())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))
	assert.Error(t, s.AddJob("not a schedule", job))

	require.NoError(t, s.RunNow(job))
	assert.EqualValues(t, 1, job.runs.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
