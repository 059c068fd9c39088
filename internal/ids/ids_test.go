package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsUUID(t *testing.T) {
	_, err := uuid.Parse(New())
	assert.NoError(t, err)
	assert.NotEqual(t, New(), New())
}

func TestNewULID_CarriesTime(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	id, err := ulid.Parse(NewULID(now))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), id.Time())

	assert.Len(t, NewULID(time.Time{}), 26)
}
