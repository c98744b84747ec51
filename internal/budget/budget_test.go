package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/koloss/internal/term"
)

func TestCounterWithinLimit(t *testing.T) {
	c := New("steps", 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Check(), "step %d should be allowed", i+1)
	}
	assert.Equal(t, int64(3), c.Current())
	assert.Equal(t, int64(0), c.Remaining())
	assert.False(t, c.Exceeded())
}

func TestCounterExceeded(t *testing.T) {
	c := New("nodes", 2)
	require.NoError(t, c.Check())
	require.NoError(t, c.Check())

	err := c.Check()
	require.Error(t, err)
	assert.True(t, term.IsResourceExhausted(err))
	assert.True(t, c.Exceeded())

	var te *term.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "nodes", te.Details["limit"])
	assert.Equal(t, "3", te.Details["used"])
}

func TestCounterUnbounded(t *testing.T) {
	c := New("steps", 0)
	for i := 0; i < 10000; i++ {
		require.NoError(t, c.Check())
	}
	assert.Equal(t, int64(-1), c.Remaining())
}

func TestCounterReset(t *testing.T) {
	c := New("iterations", 1)
	require.NoError(t, c.Check())
	require.Error(t, c.Check())

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.NoError(t, c.Check())
}

func TestCheckDepth(t *testing.T) {
	assert.NoError(t, CheckDepth(64, 64))
	assert.NoError(t, CheckDepth(1000, 0))

	err := CheckDepth(65, 64)
	require.Error(t, err)
	assert.True(t, term.IsResourceExhausted(err))
}
