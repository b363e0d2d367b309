package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/service"
)

// TradeLog is the in-memory ledger history.
type TradeLog interface {
	Trades(limit int) []domain.Trade
	RecentEvents(n int) []domain.ScoringEvent
}

// EventProcessor runs an injected scoring event through the pipeline.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev domain.ScoringEvent, contest domain.Contest) (service.PipelineResult, error)
}

// HistoryHandler serves trade and event history and manual event
// injection. When a durable history reader is configured, trades are read
// from it so they survive restarts.
type HistoryHandler struct {
	log       TradeLog
	history   domain.HistoryReader // optional
	processor EventProcessor
	logger    *slog.Logger
}

func NewHistoryHandler(log TradeLog, history domain.HistoryReader, processor EventProcessor, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{log: log, history: history, processor: processor, logger: logger}
}

// ListTrades returns trades, newest first.
// GET /api/trades?limit=50&offset=0
func (h *HistoryHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	var trades []domain.Trade
	if h.history != nil {
		var err error
		trades, err = h.history.ListTrades(r.Context(), opts)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list trades failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to list trades")
			return
		}
	} else {
		trades = h.log.Trades(opts.Limit)
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// ListEvents returns recent scoring events, newest first.
// GET /api/events?limit=50
func (h *HistoryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events := h.log.RecentEvents(parseListOpts(r).Limit)
	if events == nil {
		events = []domain.ScoringEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type injectRequest struct {
	Event   domain.ScoringEvent `json:"event"`
	Contest domain.Contest      `json:"contest"`
}

// InjectEvent processes a hand-built scoring event, for drills. A repeated
// event id answers 409 with the duplicate result.
// POST /api/events
func (h *HistoryHandler) InjectEvent(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Event.ID == "" || req.Event.ContestID == "" {
		writeError(w, http.StatusBadRequest, "event.id and event.contest_id are required")
		return
	}
	if _, err := domain.ParseSport(string(req.Event.Sport)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Contest.ID == "" {
		req.Contest.ID = req.Event.ContestID
	}
	if req.Contest.Sport == "" {
		req.Contest.Sport = req.Event.Sport
	}

	// An order may already be in flight when the client disconnects.
	res, err := h.processor.ProcessEvent(context.WithoutCancel(r.Context()), req.Event, req.Contest)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, domain.ErrDuplicateEvent):
		writeJSON(w, http.StatusConflict, res)
	default:
		h.logger.ErrorContext(r.Context(), "handler: inject event failed",
			slog.String("event_id", req.Event.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process event")
	}
}
