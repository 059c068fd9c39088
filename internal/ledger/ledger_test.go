package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/db/dbtest"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/ledger"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/repository"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []uint64
}

func (n *recordingNotifier) Emit(_ context.Context, recipient uint64, kind db.NotificationKind, _ string) (*db.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if kind == db.NotifyDecisionReceived {
		n.calls = append(n.calls, recipient)
	}
	return &db.Notification{}, nil
}

func setup(t *testing.T) (*ledger.Ledger, *recordingNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })

	n := &recordingNotifier{}
	l := ledger.New(repository.NewDecisionRepository(dbtest.Open(t)), rc, n, logger.Discard(), nil)
	return l, n, mr
}

func TestRecord_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	_, err := l.Record(ctx, 1, 1, db.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrSelfDecision)

	_, err = l.Record(ctx, 1, 2, db.DecisionKind("maybe"))
	assert.ErrorIs(t, err, svcErr.ErrInvalidKind)
}

func TestRecord_DuplicateIsTyped(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	_, err := l.Record(ctx, 1, 2, db.KindPass)
	require.NoError(t, err)

	_, err = l.Record(ctx, 1, 2, db.KindLike)
	assert.ErrorIs(t, err, svcErr.ErrDuplicateDecision)

	// the first decision stands
	d, err := l.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, db.KindPass, d.Kind)
}

func TestRecord_ConcurrentDoubleTap(t *testing.T) {
	ctx := context.Background()
	l, n, _ := setup(t)

	const taps = 8
	var wg sync.WaitGroup
	errs := make([]error, taps)
	for i := 0; i < taps; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Record(ctx, 1, 2, db.KindLike)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, svcErr.ErrDuplicateDecision)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, []uint64{2}, n.calls, "subject notified once")
}

func TestRecord_PassDoesNotNotify(t *testing.T) {
	l, n, _ := setup(t)

	_, err := l.Record(context.Background(), 1, 2, db.KindPass)
	require.NoError(t, err)
	assert.Empty(t, n.calls)
}

func TestUndecided_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	for _, subject := range []uint64{3, 5} {
		_, err := l.Record(ctx, 1, subject, db.KindPass)
		require.NoError(t, err)
	}

	got, err := l.Undecided(ctx, 1, []uint64{6, 5, 1, 4, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{6, 4, 2}, got)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	_, err := l.Remove(ctx, 1, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = l.Record(ctx, 1, 2, db.KindSuperLike)
	require.NoError(t, err)

	removed, err := l.Remove(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, db.KindSuperLike, removed.Kind)

	exists, err := l.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCountLikedYou_CacheLifecycle(t *testing.T) {
	ctx := context.Background()
	l, _, mr := setup(t)

	for _, actor := range []uint64{2, 3} {
		_, err := l.Record(ctx, actor, 1, db.KindLike)
		require.NoError(t, err)
	}

	n, err := l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("likes:count:1"))

	// a new like drops the cached value
	_, err = l.Record(ctx, 4, 1, db.KindSuperLike)
	require.NoError(t, err)
	assert.False(t, mr.Exists("likes:count:1"))

	n, err = l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// and so does a rewind of one
	_, err = l.Remove(ctx, 4, 1)
	require.NoError(t, err)
	n, err = l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCountLikedYou_PassDropsActorsCount(t *testing.T) {
	ctx := context.Background()
	l, _, mr := setup(t)

	_, err := l.Record(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)
	n, err := l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.True(t, mr.Exists("likes:count:1"))

	_, err = l.Record(ctx, 1, 2, db.KindPass)
	require.NoError(t, err)
	assert.False(t, mr.Exists("likes:count:1"))

	n, err = l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	likers, _, err := l.LikedYou(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, likers)

	// rewinding the pass brings the liker back
	_, err = l.Remove(ctx, 1, 2)
	require.NoError(t, err)
	n, err = l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// racingCache records a like between the DB count and the cache store.
type racingCache struct {
	*cache.RedisCache
	onSet func()
}

func (c *racingCache) SetLikeCountIfVersion(ctx context.Context, userID uint64, count, version int64) (bool, error) {
	if c.onSet != nil {
		c.onSet()
		c.onSet = nil
	}
	return c.RedisCache.SetLikeCountIfVersion(ctx, userID, count, version)
}

func TestCountLikedYou_FillDoesNotOverwriteInvalidation(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })

	rcache := &racingCache{RedisCache: rc}
	l := ledger.New(repository.NewDecisionRepository(dbtest.Open(t)), rcache, nil, logger.Discard(), nil)

	_, err = l.Record(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)

	rcache.onSet = func() {
		_, err := l.Record(ctx, 3, 1, db.KindLike)
		require.NoError(t, err)
	}
	n, err := l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counted before the second like")
	assert.False(t, mr.Exists("likes:count:1"), "stale fill must not be stored")

	n, err = l.CountLikedYou(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("likes:count:1"))
}

func TestLikedYou_ExcludesPassedAndMutual(t *testing.T) {
	ctx := context.Background()
	l, _, _ := setup(t)

	for _, actor := range []uint64{2, 3, 4} {
		_, err := l.Record(ctx, actor, 1, db.KindLike)
		require.NoError(t, err)
	}
	_, err := l.Record(ctx, 1, 3, db.KindPass)
	require.NoError(t, err)
	_, err = l.Record(ctx, 1, 4, db.KindLike)
	require.NoError(t, err)

	all, _, err := l.LikedYou(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 4}, actors(all))

	fresh, _, err := l.NewLikedYou(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, actors(fresh))
}

func actors(rows []db.Decision) []uint64 {
	out := make([]uint64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ActorID)
	}
	return out
}
