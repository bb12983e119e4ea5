package ec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSetGetDelete(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b.c", "2"))

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = s.Get("b.c")
	require.True(t, ok)
	assert.Equal(t, "2", v)

	require.NoError(t, s.Delete("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestStateRejectsDeepPath(t *testing.T) {
	s := NewState()
	err := s.Set("a.b.c", "1")
	assert.Error(t, err)
}

func TestStateEntriesFlattens(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b.c", "2"))

	entries := s.Entries()
	assert.Len(t, entries, 2)
}

func TestMatchesItemNames(t *testing.T) {
	assert.True(t, matchesItemNames([]string{"*"}, "anything"))
	assert.True(t, matchesItemNames([]string{"a", "b"}, "a"))
	assert.False(t, matchesItemNames([]string{"a"}, "b"))
}

func TestRootKey(t *testing.T) {
	assert.Equal(t, "a", rootKey("a"))
	assert.Equal(t, "a", rootKey("a.b"))
}
