package memory

import (
	"fmt"
	"testing"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(title string) models.Track {
	return models.Track{ID: title, Title: title, Origin: models.OriginYouTube}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 100; i++ {
		q.Enqueue(track(fmt.Sprintf("t%d", i)))
	}
	require.Equal(t, 100, q.Len())

	for i := 0; i < 100; i++ {
		e, ok := q.DequeueNext()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("t%d", i), e.Track.Title)
	}

	_, ok := q.DequeueNext()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_InterleavedEnqueueDequeue(t *testing.T) {
	q := NewQueue()
	next := 0
	want := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 3; i++ {
			q.Enqueue(track(fmt.Sprintf("t%d", next)))
			next++
		}
		for i := 0; i < 2; i++ {
			e, ok := q.DequeueNext()
			require.True(t, ok)
			require.Equal(t, fmt.Sprintf("t%d", want), e.Track.Title)
			want++
		}
	}

	entries := q.Entries()
	require.Len(t, entries, next-want)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("t%d", want+i), e.Track.Title)
	}
}

func TestQueue_EntryIDsUnique(t *testing.T) {
	q := NewQueue()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		e := q.Enqueue(track("same"))
		assert.False(t, seen[e.ID], "duplicate entry id %s", e.ID)
		assert.NotZero(t, e.EnqueuedAt)
		seen[e.ID] = true
	}
}

func TestQueue_Remove(t *testing.T) {
	q := NewQueue()
	a := q.Enqueue(track("a"))
	b := q.Enqueue(track("b"))
	c := q.Enqueue(track("c"))

	q.Remove(b.ID)
	q.Remove("missing")

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, a.ID, entries[0].ID)
	assert.Equal(t, c.ID, entries[1].ID)

	e, ok := q.DequeueNext()
	require.True(t, ok)
	assert.Equal(t, a.ID, e.ID)

	// Removing an already-consumed entry is a no-op.
	q.Remove(a.ID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_EntriesNeverNil(t *testing.T) {
	q := NewQueue()
	assert.NotNil(t, q.Entries())
	assert.Empty(t, q.Entries())
}
