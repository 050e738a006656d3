package arunaid_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aruna.io/aruna/pkg/arunaid"
)

func TestNewIsTimeSortable(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := arunaid.NewAtTime(base)
	later := arunaid.NewAtTime(base.Add(time.Hour))

	assert.True(t, earlier.Less(later))
	assert.True(t, earlier.String() < later.String())
}

func TestStringRoundTrip(t *testing.T) {
	id := arunaid.New()

	parsed, err := arunaid.FromString(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestFromStringInvalid(t *testing.T) {
	_, err := arunaid.FromString("not-an-id")
	assert.Error(t, err)
}

func TestFromBytesWrongLength(t *testing.T) {
	_, err := arunaid.FromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNilIsZero(t *testing.T) {
	assert.True(t, arunaid.Nil.IsZero())
	assert.False(t, arunaid.New().IsZero())
}

func TestTextMarshalRoundTrip(t *testing.T) {
	id := arunaid.New()

	text, err := id.MarshalText()
	require.NoError(t, err)

	var parsed arunaid.ID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, id, parsed)
}
