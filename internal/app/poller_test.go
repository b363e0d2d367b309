package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/ledger"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// scriptedProvider returns one scripted snapshot per poll and emits an event
// for every contest whose home score rose.
type scriptedProvider struct {
	mu    sync.Mutex
	polls [][]domain.Contest
	err   error
	calls int
}

func (p *scriptedProvider) Sport() domain.Sport { return domain.SportNBA }

func (p *scriptedProvider) LiveContests(context.Context) ([]domain.Contest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if len(p.polls) == 0 {
		return nil, nil
	}
	out := p.polls[0]
	p.polls = p.polls[1:]
	return out, nil
}

func (p *scriptedProvider) DetectScoringEvents(prev map[string]domain.Contest, current []domain.Contest) []domain.ScoringEvent {
	var out []domain.ScoringEvent
	for _, c := range current {
		old, ok := prev[c.ID]
		if !ok || c.HomeScore <= old.HomeScore {
			continue
		}
		out = append(out, domain.ScoringEvent{
			ID:        fmt.Sprintf("%s-%d", c.ID, c.HomeScore),
			ContestID: c.ID,
			Sport:     c.Sport,
			HomeScore: c.HomeScore,
			Points:    c.HomeScore - old.HomeScore,
		})
	}
	return out
}

type recordingProcessor struct {
	mu       sync.Mutex
	events   []domain.ScoringEvent
	contests []domain.Contest
	ctxErrs  []error
	fail     error
}

func (r *recordingProcessor) ProcessEvent(ctx context.Context, ev domain.ScoringEvent, c domain.Contest) (service.PipelineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.contests = append(r.contests, c)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return service.PipelineResult{EventID: ev.ID, Outcome: service.OutcomeNoSignal}, r.fail
}

type recordingStore struct {
	upserts []domain.Contest
	clears  int
}

func (s *recordingStore) UpsertContest(c domain.Contest) { s.upserts = append(s.upserts, c) }
func (s *recordingStore) ClearFinished() int             { s.clears++; return 0 }

// boardProvider adds a full scoreboard to the scripted live feed.
type boardProvider struct {
	*scriptedProvider
	board []domain.Contest
	err   error
}

func (p *boardProvider) Contests(context.Context) ([]domain.Contest, error) {
	return p.board, p.err
}

// ledgerCloser closes positions straight in the ledger.
type ledgerCloser struct {
	ledger  *ledger.Memory
	reasons []string
}

func (c *ledgerCloser) ClosePosition(_ context.Context, id string, price float64, reason string) (domain.Position, error) {
	c.reasons = append(c.reasons, reason)
	pos, _, err := c.ledger.ClosePosition(id, price, "exit-"+id, reason, time.Now().UTC())
	return pos, err
}

func contest(id string, home int) domain.Contest {
	return domain.Contest{ID: id, Sport: domain.SportNBA, HomeScore: home, Status: domain.ContestInProgress}
}

func TestPoller_FirstPollOnlySeeds(t *testing.T) {
	prov := &scriptedProvider{polls: [][]domain.Contest{
		{contest("a", 10)},
		{contest("a", 12), contest("b", 3)},
	}}
	proc := &recordingProcessor{}
	store := &recordingStore{}
	p := NewPoller(prov, proc, store, time.Second, quietLogger())

	assert.Equal(t, 0, p.Tick(context.Background()))
	assert.Equal(t, 1, p.Tick(context.Background()))

	require.Len(t, proc.events, 1)
	assert.Equal(t, "a", proc.events[0].ContestID)
	assert.Equal(t, 12, proc.contests[0].HomeScore, "the current snapshot accompanies the event")
	assert.Equal(t, 2, store.clears)
	assert.Len(t, store.upserts, 3, "every polled contest is stored")
}

func TestPoller_FetchErrorKeepsPreviousSnapshot(t *testing.T) {
	prov := &scriptedProvider{polls: [][]domain.Contest{{contest("a", 10)}}}
	proc := &recordingProcessor{}
	p := NewPoller(prov, proc, &recordingStore{}, time.Second, quietLogger())

	p.Tick(context.Background())
	prov.err = errors.New("espn down")
	assert.Equal(t, 0, p.Tick(context.Background()))

	prov.err = nil
	prov.polls = [][]domain.Contest{{contest("a", 13)}}
	assert.Equal(t, 1, p.Tick(context.Background()))
	assert.Equal(t, 3, proc.events[0].Points)
}

func TestPoller_ProcessingSurvivesErrorsAndCancellation(t *testing.T) {
	prov := &scriptedProvider{polls: [][]domain.Contest{
		{contest("a", 1), contest("b", 1)},
		{contest("a", 2), contest("b", 2)},
	}}
	proc := &recordingProcessor{fail: errors.New("resolver down")}
	p := NewPoller(prov, proc, &recordingStore{}, time.Second, quietLogger())

	p.Tick(context.Background())
	assert.Equal(t, 2, p.Tick(context.Background()), "a failing event does not stop the batch")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, p.Tick(ctx))
	for _, err := range proc.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	prov := &scriptedProvider{}
	p := NewPoller(prov, &recordingProcessor{}, &recordingStore{}, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		prov.mu.Lock()
		defer prov.mu.Unlock()
		return prov.calls >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_StoresFinalStateFromScoreboard(t *testing.T) {
	final := contest("a", 101)
	final.Status = domain.ContestFinal
	prov := &boardProvider{
		scriptedProvider: &scriptedProvider{polls: [][]domain.Contest{{contest("a", 99)}, {}}},
		board:            []domain.Contest{final},
	}
	store := &recordingStore{}
	p := NewPoller(prov, &recordingProcessor{}, store, time.Second, quietLogger())

	p.Tick(context.Background())
	p.Tick(context.Background())

	require.Len(t, store.upserts, 2)
	assert.Equal(t, domain.ContestFinal, store.upserts[1].Status)
	assert.Equal(t, 101, store.upserts[1].HomeScore)
}

func TestPoller_DroppedContestMarkedFinalWithoutScoreboard(t *testing.T) {
	prov := &scriptedProvider{polls: [][]domain.Contest{{contest("a", 99)}, {}}}
	store := &recordingStore{}
	p := NewPoller(prov, &recordingProcessor{}, store, time.Second, quietLogger())

	p.Tick(context.Background())
	p.Tick(context.Background())

	require.Len(t, store.upserts, 2)
	assert.Equal(t, domain.ContestFinal, store.upserts[1].Status)
	assert.Equal(t, 99, store.upserts[1].HomeScore)
}

func TestPoller_ScoreboardFailureRetriesNextPoll(t *testing.T) {
	final := contest("a", 101)
	final.Status = domain.ContestFinal
	prov := &boardProvider{
		scriptedProvider: &scriptedProvider{polls: [][]domain.Contest{{contest("a", 99)}, {}, {}}},
		err:              errors.New("espn down"),
	}
	store := &recordingStore{}
	p := NewPoller(prov, &recordingProcessor{}, store, time.Second, quietLogger())

	p.Tick(context.Background())
	p.Tick(context.Background())
	assert.Len(t, store.upserts, 1, "nothing stored while the scoreboard is unreachable")

	prov.err = nil
	prov.board = []domain.Contest{final}
	p.Tick(context.Background())
	require.Len(t, store.upserts, 2)
	assert.Equal(t, domain.ContestFinal, store.upserts[1].Status)
}

func TestPoller_EndedContestTriggersMatchEndedExit(t *testing.T) {
	l := ledger.NewMemory(0)
	l.AddPosition(domain.Position{
		ID: "p1", ContestID: "a", MarketID: "KXNBAGAME-A", Outcome: domain.OutcomeYes,
		Size: 50, EntryPrice: 0.30, CurrentPrice: 0.30,
		Status: domain.PositionStatusOpen, OpenedAt: time.Now().UTC(),
	})
	final := contest("a", 101)
	final.Status = domain.ContestFinal
	prov := &boardProvider{
		scriptedProvider: &scriptedProvider{polls: [][]domain.Contest{{contest("a", 99)}, {}, {}}},
		board:            []domain.Contest{final},
	}
	closer := &ledgerCloser{ledger: l}
	sweeper := service.NewPositionService(l, nil, nil, closer, service.ExitPolicy{}, time.Second, quietLogger())
	p := NewPoller(prov, &recordingProcessor{}, l, time.Second, quietLogger())

	p.Tick(context.Background())
	assert.Equal(t, 0, sweeper.Sweep(context.Background()), "live contest, no exit")

	p.Tick(context.Background())
	c, ok := l.Contest("a")
	require.True(t, ok, "a finished contest with an open position is kept")
	assert.Equal(t, domain.ContestFinal, c.Status)

	assert.Equal(t, 1, sweeper.Sweep(context.Background()))
	assert.Equal(t, []string{string(service.ExitContestEnded)}, closer.reasons)
	assert.Empty(t, l.OpenPositions())

	p.Tick(context.Background())
	_, ok = l.Contest("a")
	assert.False(t, ok, "cleared once no position depends on it")
}
