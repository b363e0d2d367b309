package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// Uploader stores one object. *Writer satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// ArchiveSource is the slice of domain.HistoryReader the archiver reads.
type ArchiveSource interface {
	ListClosedTradesBetween(ctx context.Context, from, to time.Time) ([]domain.Trade, error)
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]domain.ScoringEvent, error)
}

// Archiver exports one UTC day of history as JSONL:
//
//	{prefix}/trades/2026/03/01.jsonl
//	{prefix}/events/2026/03/01.jsonl
//
// Rows are not removed from the mirror. Re-running a day overwrites the
// object with the same content.
type Archiver struct {
	up     Uploader
	src    ArchiveSource
	audit  domain.Recorder
	prefix string
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(up Uploader, src ArchiveSource, audit domain.Recorder, prefix string) *Archiver {
	if audit == nil {
		audit = domain.NopRecorder{}
	}
	return &Archiver{up: up, src: src, audit: audit, prefix: prefix}
}

// ArchiveTrades uploads the trades closed on day and returns how many were
// written. Days without closed trades upload nothing.
func (a *Archiver) ArchiveTrades(ctx context.Context, day time.Time) (int, error) {
	from, to := dayBounds(day)
	trades, err := a.src.ListClosedTradesBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: list: %w", err)
	}
	return archive(ctx, a, "trades", from, trades)
}

// ArchiveEvents uploads the scoring events seen on day.
func (a *Archiver) ArchiveEvents(ctx context.Context, day time.Time) (int, error) {
	from, to := dayBounds(day)
	events, err := a.src.ListEventsBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events: list: %w", err)
	}
	return archive(ctx, a, "events", from, events)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, day time.Time, rows []T) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	data, err := encodeJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	key := ArchiveKey(a.prefix, kind, day)
	if err := a.up.Upload(ctx, key, data, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	_ = a.audit.Audit(ctx, "archive."+kind, map[string]any{
		"key":   key,
		"count": len(rows),
		"bytes": len(data),
	})
	return len(rows), nil
}

// ArchiveKey is the object key for kind on day.
func ArchiveKey(prefix, kind string, day time.Time) string {
	return path.Join(prefix, kind, day.UTC().Format("2006/01/02")+".jsonl")
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func encodeJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
