package mt19937

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowRefusesEarlyClone(t *testing.T) {
	var w Window
	src := New(7)
	for i := 0; i < StateSize-1; i++ {
		require.NoError(t, w.Add(src.Uint32()))
	}

	_, err := w.Clone()
	require.ErrorIs(t, err, ErrWindowIncomplete)
	assert.Equal(t, 1, w.Remaining())
	assert.False(t, w.Full())
}

func TestWindowRefusesExtraObservation(t *testing.T) {
	var w Window
	src := New(7)
	for i := 0; i < StateSize; i++ {
		require.NoError(t, w.Add(src.Uint32()))
	}
	require.True(t, w.Full())

	assert.ErrorIs(t, w.Add(0), ErrWindowFull)
	assert.Equal(t, StateSize, w.Len())

	clone, err := w.Clone()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, src.Uint32(), clone.Uint32())
	}
}
