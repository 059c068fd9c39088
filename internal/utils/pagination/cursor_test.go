package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_EmptyIsFirstPage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode("%%%")
	assert.Error(t, err)

	_, err = Decode("bm90LWpzb24=") // "not-json"
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	rows := []int{5, 4, 3}
	key := func(n int) Cursor { return Cursor{ID: "k", CreatedUnix: int64(n)} }

	page, token := Next(rows, 2, key)
	assert.Equal(t, []int{5, 4}, page)
	require.NotNil(t, token)

	c, err := Decode(*token)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.CreatedUnix)

	page, token = Next(rows, 3, key)
	assert.Len(t, page, 3)
	assert.Nil(t, token)
}
