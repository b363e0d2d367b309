// Package notify pushes trading alerts (fills, exits, breaker trips,
// faults) to Telegram and Discord.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Alert event names the pipeline emits.
const (
	EventOrderFilled    = "order_filled"
	EventPositionClosed = "position_closed"
	EventCircuitBreaker = "circuit_breaker"
	EventError          = "error"
)

// DefaultEvents is the filter used when none is configured.
var DefaultEvents = []string{EventOrderFilled, EventPositionClosed, EventCircuitBreaker, EventError}

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every sender when its event passes the
// filter. Identical alerts inside the cooldown are dropped so that a
// failing exchange does not flood the channel.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewNotifier builds a Notifier. An empty events list allows DefaultEvents.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	if len(events) == 0 {
		events = DefaultEvents
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "notifier")),
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify delivers the alert to all senders. Sender failures are joined into
// the returned error; callers on the trading path only log it.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.events[event] {
		return nil
	}
	if n.suppressed(event, title, message) {
		n.logger.DebugContext(ctx, "alert suppressed", slog.String("event", event), slog.String("title", title))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) suppressed(event, title, message string) bool {
	if n.cooldown <= 0 {
		return false
	}
	key := event + "\x00" + title + "\x00" + message
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if at, ok := n.last[key]; ok && now.Sub(at) < n.cooldown {
		return true
	}
	for k, at := range n.last {
		if now.Sub(at) >= n.cooldown {
			delete(n.last, k)
		}
	}
	n.last[key] = now
	return false
}
