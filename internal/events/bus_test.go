package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-match/internal/events"
)

func receive(t *testing.T, sub events.Subscription) []byte {
	t.Helper()
	select {
	case p, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func exercise(t *testing.T, bus events.Bus) {
	ctx := context.Background()
	topic := events.MatchTopic("m-1")

	sub, err := bus.Subscribe(ctx, topic)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, topic, []byte("one")))
	require.NoError(t, bus.Publish(ctx, events.MatchTopic("other"), []byte("nope")))
	require.NoError(t, bus.Publish(ctx, topic, []byte("two")))

	assert.Equal(t, "one", string(receive(t, sub)))
	assert.Equal(t, "two", string(receive(t, sub)))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// channel ends after close
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.C():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBus(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exercise(t, events.NewRedisBus(client, 8))
}

func TestMemoryBus(t *testing.T) {
	exercise(t, events.NewMemoryBus(8))
}

func TestMemoryBus_DropAllClosesFeeds(t *testing.T) {
	bus := events.NewMemoryBus(8)
	sub, err := bus.Subscribe(context.Background(), events.InboxTopic(3))
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("inbox.3"))

	bus.DropAll()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers("inbox.3"))
	// closing after a drop is harmless
	assert.NoError(t, sub.Close())
}

func TestMemoryBus_FullQueueDrops(t *testing.T) {
	ctx := context.Background()
	bus := events.NewMemoryBus(1)
	sub, err := bus.Subscribe(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "t", []byte("a")))
	require.NoError(t, bus.Publish(ctx, "t", []byte("b"))) // dropped

	assert.Equal(t, "a", string(receive(t, sub)))
	select {
	case p := <-sub.C():
		t.Fatalf("unexpected payload %q", p)
	default:
	}
}

func TestRedisBus_ReconnectEndsFeed(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus := events.NewRedisBus(client, 8)

	topic := events.MatchTopic("m-1")
	sub, err := bus.Subscribe(ctx, topic)
	require.NoError(t, err)
	defer sub.Close()

	mr.Close()
	require.NoError(t, mr.Restart())

	// go-redis re-subscribes by itself; the feed must still end so the owner
	// replays what was published while it was gone
	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(10 * time.Second):
		t.Fatal("feed survived a reconnect")
	}

	next, err := bus.Subscribe(ctx, topic)
	require.NoError(t, err)
	defer next.Close()
	require.NoError(t, bus.Publish(ctx, topic, []byte("after")))
	assert.Equal(t, "after", string(receive(t, next)))
}
