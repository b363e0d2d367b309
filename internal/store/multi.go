// Package store holds helpers shared by the durable mirrors.
package store

import (
	"context"
	"errors"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// MultiRecorder writes to every recorder and joins their errors. A failing
// mirror does not stop the others.
type MultiRecorder []domain.Recorder

// NewMultiRecorder drops nil entries. It returns domain.NopRecorder when
// nothing is left and the sole recorder when there is only one.
func NewMultiRecorder(recs ...domain.Recorder) domain.Recorder {
	var out MultiRecorder
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return domain.NopRecorder{}
	case 1:
		return out[0]
	}
	return out
}

func (m MultiRecorder) each(fn func(domain.Recorder) error) error {
	var errs []error
	for _, r := range m {
		if err := fn(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordEvent(ctx context.Context, ev domain.ScoringEvent) error {
	return m.each(func(r domain.Recorder) error { return r.RecordEvent(ctx, ev) })
}

func (m MultiRecorder) RecordOrder(ctx context.Context, o domain.Order) error {
	return m.each(func(r domain.Recorder) error { return r.RecordOrder(ctx, o) })
}

func (m MultiRecorder) RecordPosition(ctx context.Context, p domain.Position) error {
	return m.each(func(r domain.Recorder) error { return r.RecordPosition(ctx, p) })
}

func (m MultiRecorder) RecordTrade(ctx context.Context, t domain.Trade) error {
	return m.each(func(r domain.Recorder) error { return r.RecordTrade(ctx, t) })
}

func (m MultiRecorder) RecordSnapshot(ctx context.Context, s domain.Snapshot) error {
	return m.each(func(r domain.Recorder) error { return r.RecordSnapshot(ctx, s) })
}

func (m MultiRecorder) Audit(ctx context.Context, event string, detail map[string]any) error {
	return m.each(func(r domain.Recorder) error { return r.Audit(ctx, event, detail) })
}
