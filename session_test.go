package pagefold

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionForwardWalk(t *testing.T) {
	b := paginationBook(t, 6)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	s, err := e.BeginSession(0, SessionConfig{})
	require.NoError(t, err)
	assert.Equal(t, -1, s.Cursor())

	for i := 0; i < 6; i++ {
		p, err := s.Next()
		require.NoError(t, err, "page %d", i)
		assert.Equal(t, i, p.Index)
		assert.Equal(t, i, s.Cursor())
	}

	// Past the last page: cursor stays put.
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, s.Cursor())

	p, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, 5, p.Index)
}

func TestSessionBackwardWalk(t *testing.T) {
	b := paginationBook(t, 4)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	s, err := e.BeginSession(0, SessionConfig{})
	require.NoError(t, err)

	_, err = s.Prev()
	assert.ErrorIs(t, err, ErrNotFound, "no page before the first")

	for i := 0; i < 4; i++ {
		_, err = s.Next()
		require.NoError(t, err)
	}
	for i := 2; i >= 0; i-- {
		p, err := s.Prev()
		require.NoError(t, err)
		assert.Equal(t, i, p.Index)
	}
	_, err = s.Prev()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Cursor())
}

func TestSessionCacheNeverExceedsBudget(t *testing.T) {
	b := paginationBook(t, 15)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	const budget = 4
	s, err := e.BeginSession(0, SessionConfig{MaxPagesInMemory: budget})
	require.NoError(t, err)

	// Forward past the window, back again, then forward: residency stays
	// bounded after every single advance.
	check := func(step string) {
		if got := e.cache.len(); got > budget {
			t.Fatalf("%s: %d resident pages, budget %d", step, got, budget)
		}
	}
	for i := 0; i < 12; i++ {
		_, err := s.Next()
		require.NoError(t, err)
		check(fmt.Sprintf("forward %d", i))
	}
	for i := 0; i < 11; i++ {
		_, err := s.Prev()
		require.NoError(t, err)
		check(fmt.Sprintf("backward %d", i))
	}
	for i := 0; i < 6; i++ {
		_, err := s.Next()
		require.NoError(t, err)
		check(fmt.Sprintf("re-forward %d", i))
	}
}

func TestSessionKeepsPagesNearCursor(t *testing.T) {
	b := paginationBook(t, 12)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	s, err := e.BeginSession(0, SessionConfig{MaxPagesInMemory: 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Next()
		require.NoError(t, err)
	}

	// With the distance policy the immediate neighborhood of the cursor
	// stays resident; page 0 was evicted long ago.
	_, ok := e.cache.get(9)
	assert.True(t, ok)
	_, ok = e.cache.get(0)
	assert.False(t, ok)
}

func TestSessionCustomEvictionPolicy(t *testing.T) {
	b := paginationBook(t, 8)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	var calls int
	evictLowest := func(resident []int, cursor int) int {
		calls++
		low := resident[0]
		for _, idx := range resident[1:] {
			if idx < low {
				low = idx
			}
		}
		return low
	}
	s, err := e.BeginSession(0, SessionConfig{MaxPagesInMemory: 2, Evict: evictLowest})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.Next()
		require.NoError(t, err)
	}
	assert.Greater(t, calls, 0, "policy consulted at capacity")
	_, ok := e.cache.get(4)
	assert.True(t, ok)
	_, ok = e.cache.get(0)
	assert.False(t, ok)
}

func TestEvictFarthest(t *testing.T) {
	assert.Equal(t, 9, EvictFarthest([]int{3, 4, 9}, 3))
	assert.Equal(t, 0, EvictFarthest([]int{0, 7, 8}, 8))
	assert.Equal(t, 5, EvictFarthest([]int{5}, 0))
}

func TestBeginSessionBadChapter(t *testing.T) {
	b := paginationBook(t, 2)
	defer b.Close()
	e := NewEngine(b, testGeometry)

	_, err := e.BeginSession(9, SessionConfig{})
	assert.Error(t, err)
}

func TestSessionFailureLatches(t *testing.T) {
	b := paginationBook(t, 6)
	defer b.Close()
	b.opts.Memory.MaxEntryBytes = 128

	e := NewEngine(b, testGeometry)
	s, err := e.BeginSession(0, SessionConfig{})
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, isLimitError(err))

	// The session stays failed even after the budget is raised; the
	// caller begins a fresh session to retry.
	b.opts.Memory.MaxEntryBytes = 1 << 20
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrSessionFailed)

	s2, err := e.BeginSession(0, SessionConfig{})
	require.NoError(t, err)
	p, err := s2.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
}