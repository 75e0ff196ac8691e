package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountedSet_AddIncrementsCount(t *testing.T) {
	s := NewCountedSet[string, int]()

	s.Add("a", 1)
	s.Add("a", 1)
	s.Add("b", 2)

	assert.Equal(t, 2, s.Count("a"))
	assert.Equal(t, 1, s.Count("b"))
	assert.Equal(t, 0, s.Count("missing"))
	assert.Equal(t, 2, s.Len(), "Len counts distinct keys")
}

func TestCountedSet_DeleteReturnsTrueOnlyForLastReference(t *testing.T) {
	s := NewCountedSet[string, int]()
	s.Add("a", 1)
	s.Add("a", 1)

	assert.False(t, s.Delete("a"), "first delete leaves one reference")
	assert.True(t, s.Has("a"))
	assert.True(t, s.Delete("a"), "second delete removes the entry")
	assert.False(t, s.Has("a"))
	assert.False(t, s.Delete("a"), "deleting an absent key is a no-op")
}

func TestCountedSet_ForEachVisitsDistinctEntriesOnce(t *testing.T) {
	s := NewCountedSet[string, int]()
	s.Add("a", 1)
	s.Add("a", 1)
	s.Add("a", 1)
	s.Add("b", 2)

	var seen []string
	err := s.ForEach(func(k string, v int) error {
		seen = append(seen, k)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestCountedSet_ReinsertMovesToEnd(t *testing.T) {
	s := NewCountedSet[string, int]()
	s.Add("a", 1)
	s.Add("b", 2)
	s.Add("c", 3)

	require.True(t, s.Delete("a"))
	s.Add("a", 1)

	assert.Equal(t, []string{"b", "c", "a"}, s.Keys())
}

func TestCountedSet_ForEachStopsOnError(t *testing.T) {
	s := NewCountedSet[string, int]()
	s.Add("a", 1)
	s.Add("b", 2)

	boom := errors.New("boom")
	calls := 0
	err := s.ForEach(func(k string, v int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestCountedSet_FirstValueWins(t *testing.T) {
	s := NewCountedSet[string, int]()
	s.Add("a", 1)
	s.Add("a", 99)

	var got int
	_ = s.ForEach(func(_ string, v int) error {
		got = v
		return nil
	})
	assert.Equal(t, 1, got)
}
