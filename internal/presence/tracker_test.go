package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-match/internal/db/dbtest"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/presence"
	"github.com/oggyb/muzz-match/internal/repository"
)

func TestOnline(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := 10 * time.Minute

	assert.False(t, presence.Online(time.Time{}, now, w), "never seen")
	assert.False(t, presence.Online(now.Add(-w), now, w), "boundary is exclusive")
	assert.True(t, presence.Online(now.Add(-w+time.Millisecond), now, w))
	assert.True(t, presence.Online(now.Add(-time.Second), now, w))
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := presence.NewTracker(repository.NewPresenceRepository(dbtest.Open(t)), 10*time.Minute, logger.Discard()).
		WithClock(func() time.Time { return clock })

	online, err := tr.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.False(t, online, "unknown user is offline")

	require.NoError(t, tr.Touch(ctx, 1))
	online, err = tr.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)

	clock = clock.Add(11 * time.Minute)
	online, err = tr.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.False(t, online)

	// a second touch moves the row forward, it does not add one
	require.NoError(t, tr.Touch(ctx, 1))
	last, err := tr.LastActive(ctx, 1)
	require.NoError(t, err)
	assert.True(t, last.Equal(clock))

	require.NoError(t, tr.Touch(ctx, 2))
	clock = clock.Add(5 * time.Minute)
	m, err := tr.OnlineAmong(ctx, []uint64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]bool{1: true, 2: true, 3: false}, m)
}

func TestTracker_DefaultWindow(t *testing.T) {
	tr := presence.NewTracker(repository.NewPresenceRepository(dbtest.Open(t)), 0, logger.Discard())
	assert.Equal(t, presence.DefaultWindow, tr.Window())
}
