package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scoretrader/internal/cache/memory"
	"github.com/alanyoungcy/scoretrader/internal/domain"
)

func receive(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("no message")
		return ""
	}
}

func TestSignalBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := memory.NewSignalBus(0)

	trades, err := bus.Subscribe(ctx, domain.ChannelTrades)
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, "scoretrader:*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelTrades, []byte(`{"type":"trade.opened"}`)))
	require.NoError(t, bus.Publish(ctx, domain.ChannelRisk, []byte(`{"type":"risk.tripped"}`)))

	assert.Equal(t, `{"type":"trade.opened"}`, receive(t, trades))
	assert.Equal(t, `{"type":"trade.opened"}`, receive(t, all))
	assert.Equal(t, `{"type":"risk.tripped"}`, receive(t, all))

	select {
	case msg := <-trades:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}

func TestSignalBus_SubscriptionClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := memory.NewSignalBus(0)
	ch, err := bus.Subscribe(ctx, domain.ChannelEvents)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.NoError(t, bus.Publish(context.Background(), domain.ChannelEvents, []byte("x")))
}

func TestSignalBus_StreamTrimAndRead(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewSignalBus(3)
	for _, p := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, bus.StreamAppend(ctx, domain.StreamTrades, []byte(p)))
	}

	msgs, err := bus.StreamRead(ctx, domain.StreamTrades, "0", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", string(msgs[0].Payload))

	next, err := bus.StreamRead(ctx, domain.StreamTrades, msgs[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "d", string(next[0].Payload))
}
