package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name  string
	sent  []string
	fails bool
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.sent = append(r.sent, title)
	if r.fails {
		return errors.New("down")
	}
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventOrderFilled}, 0, quiet())

	require.NoError(t, n.Notify(context.Background(), EventOrderFilled, "filled", ""))
	require.NoError(t, n.Notify(context.Background(), EventError, "boom", ""))
	assert.Equal(t, []string{"filled"}, s.sent)
}

func TestNotifier_DefaultEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, 0, quiet())
	require.NoError(t, n.Notify(context.Background(), EventCircuitBreaker, "tripped", ""))
	require.NoError(t, n.Notify(context.Background(), "unknown", "x", ""))
	assert.Equal(t, []string{"tripped"}, s.sent)
}

func TestNotifier_SenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", fails: true}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, 0, quiet())

	err := n.Notify(context.Background(), EventError, "boom", "")
	assert.ErrorContains(t, err, "bad: down")
	assert.Equal(t, []string{"boom"}, good.sent)
}

func TestNotifier_Cooldown(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, time.Minute, quiet())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, EventError, "submit failed", "503"))
	require.NoError(t, n.Notify(ctx, EventError, "submit failed", "503"))
	require.NoError(t, n.Notify(ctx, EventError, "submit failed", "429"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, n.Notify(ctx, EventError, "submit failed", "503"))
	assert.Len(t, s.sent, 3)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "Filled", "BUF @ 0.27"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Filled*\nBUF @ 0.27", got["text"])
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}
