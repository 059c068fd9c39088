package swipe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/db/dbtest"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/repository"
)

func newApp(t *testing.T) *app.AppContext {
	t.Helper()
	cfg := config.New()
	cfg.Rewind.Budget = 3
	return app.New(cfg, dbtest.Open(t), nil, events.NewMemoryBus(16), logger.Discard(), nil)
}

func matchFormed(t *testing.T, a *app.AppContext, user uint64) int64 {
	t.Helper()
	n, err := repository.NewNotificationRepository(a.DB).CountByKind(context.Background(), user, db.NotifyMatchFormed)
	require.NoError(t, err)
	return n
}

func TestSwipe_ConcurrentReciprocalLikes(t *testing.T) {
	for round := 0; round < 5; round++ {
		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			ctx := context.Background()
			a := newApp(t)
			_, alice := a.Rewinds.Open(1, false)
			_, bob := a.Rewinds.Open(2, false)

			var wg sync.WaitGroup
			var mu sync.Mutex
			created := 0
			for _, run := range []func() (bool, error){
				func() (bool, error) {
					res, err := a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
					if err != nil {
						return false, err
					}
					return res.MatchCreated, nil
				},
				func() (bool, error) {
					res, err := a.Swipes.Swipe(ctx, bob, 1, db.KindSuperLike)
					if err != nil {
						return false, err
					}
					return res.MatchCreated, nil
				},
			} {
				wg.Add(1)
				go func(run func() (bool, error)) {
					defer wg.Done()
					ok, err := run()
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						created++
						mu.Unlock()
					}
				}(run)
			}
			wg.Wait()

			assert.Equal(t, 1, created)
			active, err := a.Matches.ListActive(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, active, 1)
			assert.Equal(t, int64(1), matchFormed(t, a, 1))
			assert.Equal(t, int64(1), matchFormed(t, a, 2))
		})
	}
}

func TestSwipe_RewindEndsConversation(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	_, alice := a.Rewinds.Open(1, false)
	_, bob := a.Rewinds.Open(2, false)

	_, err := a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
	require.NoError(t, err)
	res, err := a.Swipes.Swipe(ctx, bob, 1, db.KindLike)
	require.NoError(t, err)
	require.True(t, res.MatchCreated)
	matchID := res.Match.ID

	_, err = a.Channel.Send(ctx, matchID, 1, "hi")
	require.NoError(t, err)

	undo, err := a.Swipes.Rewind(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), undo.RestoredSubjectID)
	require.NotNil(t, undo.Match)
	assert.Equal(t, matchID, undo.Match.ID)

	_, err = a.Channel.Send(ctx, matchID, 2, "hello?")
	assert.ErrorIs(t, err, svcErr.ErrInactiveMatch)

	// alice's like is gone, bob's remains
	exists, err := a.Ledger.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = a.Ledger.Exists(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	// liking again forms a fresh match
	again, err := a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
	require.NoError(t, err)
	require.True(t, again.MatchCreated)
	assert.NotEqual(t, matchID, again.Match.ID)
}

func TestSwipe_FourthRewindUnavailable(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	_, s := a.Rewinds.Open(1, false)

	for subject := uint64(2); subject <= 5; subject++ {
		_, err := a.Swipes.Swipe(ctx, s, subject, db.KindPass)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := a.Swipes.Rewind(ctx, s)
		require.NoError(t, err)
	}
	_, err := a.Swipes.Rewind(ctx, s)
	assert.ErrorIs(t, err, svcErr.ErrNoRewindAvailable)
	assert.Zero(t, s.Remaining())
}

func TestSwipe_DuplicateHealsMissedMatch(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	_, alice := a.Rewinds.Open(1, false)

	// both decisions land but detection never ran
	_, err := a.Ledger.Record(ctx, 1, 2, db.KindLike)
	require.NoError(t, err)
	_, err = a.Ledger.Record(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)

	_, err = a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrDuplicateDecision)

	m, err := a.Matches.ActiveBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, int64(1), matchFormed(t, a, 1))
	assert.Zero(t, alice.Depth(), "a duplicate is not undoable")
}

func TestSwipe_DuplicateAfterUnmatchDoesNotRematch(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	_, alice := a.Rewinds.Open(1, false)
	_, bob := a.Rewinds.Open(2, false)

	_, err := a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
	require.NoError(t, err)
	res, err := a.Swipes.Swipe(ctx, bob, 1, db.KindLike)
	require.NoError(t, err)
	require.True(t, res.MatchCreated)

	require.NoError(t, a.Matches.Unmatch(ctx, res.Match.ID, 2))

	_, err = a.Swipes.Swipe(ctx, alice, 2, db.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrDuplicateDecision)

	m, err := a.Matches.ActiveBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, m)
	active, err := a.Matches.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, int64(1), matchFormed(t, a, 1))
	assert.Equal(t, int64(1), matchFormed(t, a, 2))
}

func TestSwipe_TouchesPresenceAndFiltersCandidates(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	_, s := a.Rewinds.Open(1, false)

	_, err := a.Swipes.Swipe(ctx, s, 2, db.KindPass)
	require.NoError(t, err)

	online, err := a.Presence.IsOnline(ctx, 1)
	require.NoError(t, err)
	assert.True(t, online)

	left, err := a.Swipes.Candidates(ctx, 1, []uint64{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, left)

	_, err = a.Swipes.Rewind(ctx, s)
	require.NoError(t, err)
	left, err = a.Swipes.Candidates(ctx, 1, []uint64{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3, 4}, left)
}
