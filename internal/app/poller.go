package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

// EventProcessor runs one scoring event through the pipeline.
// *service.TradeService satisfies it.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev domain.ScoringEvent, c domain.Contest) (service.PipelineResult, error)
}

// ContestStore keeps the latest snapshot of every tracked contest.
// *ledger.Memory satisfies it.
type ContestStore interface {
	UpsertContest(c domain.Contest)
	ClearFinished() int
}

// Scoreboard is implemented by providers that can also list finished
// contests. It is used to read the final state of a contest that left the
// live list.
type Scoreboard interface {
	Contests(ctx context.Context) ([]domain.Contest, error)
}

// Poller drives one sport: it polls live contests, turns score changes into
// scoring events and feeds them to the pipeline one at a time.
type Poller struct {
	provider  domain.ScoreProvider
	processor EventProcessor
	contests  ContestStore
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	prev map[string]domain.Contest
}

// NewPoller creates a poller. interval defaults to 30s.
func NewPoller(provider domain.ScoreProvider, processor EventProcessor, contests ContestStore, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		provider:  provider,
		processor: processor,
		contests:  contests,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		logger: logger.With(
			slog.String("component", "poller"),
			slog.String("sport", string(provider.Sport())),
		),
		prev: make(map[string]domain.Contest),
	}
}

// Run polls immediately and then every interval until ctx is cancelled. An
// event already handed to the pipeline is allowed to finish first.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "poller started", slog.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Tick(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one poll and returns the number of events handed to the
// pipeline.
func (p *Poller) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.interval)
	contests, err := p.provider.LiveContests(pollCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "fetch live contests failed", slog.String("error", err.Error()))
		}
		return 0
	}

	events := p.provider.DetectScoringEvents(p.prev, contests)
	current := make(map[string]domain.Contest, len(contests))
	for _, c := range contests {
		current[c.ID] = c
		p.contests.UpsertContest(c)
	}
	p.settleDropped(ctx, current)
	p.prev = current

	handled := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			p.logger.Info("poll cancelled, dropping remaining events", slog.Int("remaining", len(events)-handled))
			break
		}
		p.process(ctx, ev, current[ev.ContestID])
		handled++
	}

	if n := p.contests.ClearFinished(); n > 0 {
		p.logger.DebugContext(ctx, "cleared finished contests", slog.Int("count", n))
	}
	return handled
}

// settleDropped stores the final state of contests that were live on the
// previous poll but are missing now. The state comes from the provider's
// full scoreboard when it has one; otherwise the last snapshot is marked
// final. Contests that cannot be settled yet are carried in current and
// retried on the next poll.
func (p *Poller) settleDropped(ctx context.Context, current map[string]domain.Contest) {
	var dropped []domain.Contest
	for id, c := range p.prev {
		if _, ok := current[id]; !ok {
			dropped = append(dropped, c)
		}
	}
	if len(dropped) == 0 {
		return
	}

	var board map[string]domain.Contest
	if sb, ok := p.provider.(Scoreboard); ok {
		pollCtx, cancel := context.WithTimeout(ctx, p.interval)
		all, err := sb.Contests(pollCtx)
		cancel()
		if err != nil {
			p.logger.WarnContext(ctx, "fetch scoreboard failed", slog.String("error", err.Error()))
			for _, c := range dropped {
				current[c.ID] = c
			}
			return
		}
		board = make(map[string]domain.Contest, len(all))
		for _, c := range all {
			board[c.ID] = c
		}
	}

	for _, c := range dropped {
		final, ok := board[c.ID]
		switch {
		case ok && final.Status.IsTerminal():
		case ok:
			// Off the live list but not finished yet (delay, suspension).
			current[c.ID] = c
			continue
		default:
			final = c
			final.Status = domain.ContestFinal
			final.UpdatedAt = p.now()
		}
		p.contests.UpsertContest(final)
		p.logger.InfoContext(ctx, "contest ended",
			slog.String("contest_id", final.ID),
			slog.String("status", string(final.Status)),
		)
	}
}

func (p *Poller) process(ctx context.Context, ev domain.ScoringEvent, c domain.Contest) {
	// Shutdown must not abandon an order half way through submission.
	res, err := p.processor.ProcessEvent(context.WithoutCancel(ctx), ev, c)
	switch {
	case errors.Is(err, domain.ErrDuplicateEvent):
		p.logger.DebugContext(ctx, "duplicate event", slog.String("event_id", ev.ID))
	case err != nil:
		p.logger.ErrorContext(ctx, "process event failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	default:
		p.logger.InfoContext(ctx, "event processed",
			slog.String("event_id", ev.ID),
			slog.String("outcome", string(res.Outcome)),
			slog.String("reason", res.Reason),
		)
	}
}
