package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/db/dbtest"
)

func TestSeedTestData(t *testing.T) {
	gdb := dbtest.Open(t)
	require.NoError(t, db.SeedTestData(gdb))

	var users int64
	require.NoError(t, gdb.Model(&db.User{}).Count(&users).Error)
	assert.Equal(t, int64(20), users)

	var decisions []db.Decision
	require.NoError(t, gdb.Find(&decisions).Error)
	require.NotEmpty(t, decisions)
	positive := map[[2]uint64]bool{}
	for _, d := range decisions {
		assert.NotEqual(t, d.ActorID, d.SubjectID)
		assert.True(t, d.Kind.Valid())
		if d.Kind.Positive() {
			positive[[2]uint64{d.ActorID, d.SubjectID}] = true
		}
	}

	var matches []db.Match
	require.NoError(t, gdb.Find(&matches).Error)
	require.NotEmpty(t, matches, "every 3rd pair is made mutual")
	for _, m := range matches {
		assert.Less(t, m.UserA, m.UserB)
		assert.True(t, m.Active)
		require.NotNil(t, m.PairKey)
		assert.Equal(t, db.PairKeyFor(m.UserA, m.UserB), *m.PairKey)
		assert.True(t, positive[[2]uint64{m.UserA, m.UserB}] && positive[[2]uint64{m.UserB, m.UserA}])

		var msgs []db.Message
		require.NoError(t, gdb.Where("match_id = ?", m.ID).Order("seq").Find(&msgs).Error)
		assert.Len(t, msgs, int(m.LastSeq))
		for i, msg := range msgs {
			assert.Equal(t, int64(i+1), msg.Seq)
			assert.True(t, m.HasUser(msg.SenderID))
		}
	}

	// reseeding starts from scratch
	require.NoError(t, db.SeedTestData(gdb))
	require.NoError(t, gdb.Model(&db.User{}).Count(&users).Error)
	assert.Equal(t, int64(20), users)
}
