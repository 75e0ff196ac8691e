package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeQuota(t *testing.T) {
	q := newCascadeQuota(2)
	require.NoError(t, q.Check("a"))
	require.NoError(t, q.Check("b"))

	err := q.Check("c")
	require.Error(t, err)
	assert.True(t, IsCascadeError(err))
	assert.Equal(t, 3, q.Current())

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "3", re.Details["steps"])
	assert.Equal(t, "2", re.Details["limit"])
	assert.Contains(t, err.Error(), "CASCADE_EXCEEDED")
}

func TestCascadeQuota_Unbounded(t *testing.T) {
	q := newCascadeQuota(0)
	for range 10_000 {
		require.NoError(t, q.Check("a"))
	}
}

func TestRuntimeError_Format(t *testing.T) {
	err := newDivergence(4, "set", "changed", "[A]", "[B]")
	assert.Equal(t, "REPLAY_DIVERGED: changed mismatch: recorded [A], replayed [B] (seq=4, type=set)", err.Error())
	assert.True(t, IsReplayDivergence(err))
	assert.False(t, IsCascadeError(err))

	assert.Equal(t, "STOPPED: engine is stopped (type=x)", newStoppedError("x").Error())
}
