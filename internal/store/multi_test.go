package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/store"
)

type countingRecorder struct {
	domain.NopRecorder
	events int
	err    error
}

func (c *countingRecorder) RecordEvent(context.Context, domain.ScoringEvent) error {
	c.events++
	return c.err
}

func TestNewMultiRecorder(t *testing.T) {
	assert.Equal(t, domain.NopRecorder{}, store.NewMultiRecorder(nil, nil))

	one := &countingRecorder{}
	assert.Same(t, one, store.NewMultiRecorder(nil, one))
}

func TestMultiRecorder_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("disk full")
	a, b := &countingRecorder{err: boom}, &countingRecorder{}
	rec := store.NewMultiRecorder(a, b)

	err := rec.RecordEvent(context.Background(), domain.ScoringEvent{ID: "e1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.events)
	assert.Equal(t, 1, b.events, "second mirror still written")

	assert.NoError(t, rec.Audit(context.Background(), "x", nil))
}
