package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// SportOverride replaces individual per-sport defaults. Zero fields keep the
// default.
type SportOverride struct {
	MinPoints         int
	MaxPrice          float64
	MaxDifferential   int
	UnderdogThreshold float64
}

// Config holds the evaluator thresholds shared by every sport.
type Config struct {
	UnderdogThreshold float64
	MinLiquidity      float64
	LimitPremium      float64
	ExpectedMove      float64
	ValueFloor        float64
	Sports            map[domain.Sport]SportOverride
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		UnderdogThreshold: 0.5,
		MinLiquidity:      100,
		LimitPremium:      0.02,
		ExpectedMove:      0.10,
		ValueFloor:        0.50,
	}
}

// DefaultParams returns the parameters for sport with any override from cfg
// applied.
func DefaultParams(sport domain.Sport, cfg Config) Params {
	p := Params{Sport: sport, MinPoints: 1, MaxPrice: 0.70, UnderdogThreshold: cfg.UnderdogThreshold}
	switch sport {
	case domain.SportNFL:
		p.MinPoints, p.MaxDifferential, p.UnderdogThreshold = 6, 21, 0.45
	case domain.SportNBA:
		p.MinPoints, p.MaxDifferential = 10, 25
	case domain.SportMLB:
		p.MaxDifferential = 5
	case domain.SportNHL:
		p.MaxDifferential = 3
	case domain.SportSoccer:
		p.MaxPrice, p.MaxDifferential, p.UnderdogThreshold = 0.65, 3, 0.45
	}
	if o, ok := cfg.Sports[sport]; ok {
		if o.MinPoints > 0 {
			p.MinPoints = o.MinPoints
		}
		if o.MaxPrice > 0 {
			p.MaxPrice = o.MaxPrice
		}
		if o.MaxDifferential > 0 {
			p.MaxDifferential = o.MaxDifferential
		}
		if o.UnderdogThreshold > 0 {
			p.UnderdogThreshold = o.UnderdogThreshold
		}
	}
	return p
}

// Registry is the sport-keyed dispatch table of rules. It is safe for
// concurrent use.
type Registry struct {
	rules map[domain.Sport]Rules
	mu    sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[domain.Sport]Rules),
	}
}

// DefaultRegistry registers rules for every supported sport.
func DefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(NewNFL(DefaultParams(domain.SportNFL, cfg)))
	r.Register(NewNBA(DefaultParams(domain.SportNBA, cfg)))
	r.Register(NewMLB(DefaultParams(domain.SportMLB, cfg)))
	r.Register(NewNHL(DefaultParams(domain.SportNHL, cfg)))
	r.Register(NewSoccer(DefaultParams(domain.SportSoccer, cfg)))
	return r
}

// Register adds rules under their sport, replacing any existing entry.
func (r *Registry) Register(rules Rules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rules.Sport()] = rules
}

// Get retrieves the rules for a sport.
func (r *Registry) Get(sport domain.Sport) (Rules, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules, ok := r.rules[sport]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", sport, domain.ErrUnknownSport)
	}
	return rules, nil
}

// List returns the registered sports in sorted order.
func (r *Registry) List() []domain.Sport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sports := make([]domain.Sport, 0, len(r.rules))
	for s := range r.rules {
		sports = append(sports, s)
	}
	sort.Slice(sports, func(i, j int) bool { return sports[i] < sports[j] })
	return sports
}

// ListParams returns every sport's parameters, sorted by sport.
func (r *Registry) ListParams() []Params {
	sports := r.List()
	out := make([]Params, 0, len(sports))
	for _, s := range sports {
		if rules, err := r.Get(s); err == nil {
			out = append(out, rules.Params())
		}
	}
	return out
}
