package memory

import (
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/google/uuid"
)

// Queue stores a station's pending tracks in insertion order.
type Queue struct {
	mu      sync.RWMutex
	entries []models.QueueEntry
	head    int // index of the front entry; entries before it are consumed
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a track with a fresh entry id and the current timestamp.
func (q *Queue) Enqueue(track models.Track) models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := models.QueueEntry{
		ID:         uuid.NewString(),
		Track:      track,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	q.entries = append(q.entries, entry)
	return entry
}

// DequeueNext removes and returns the front entry. ok is false when the queue is empty.
func (q *Queue) DequeueNext() (entry models.QueueEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.entries) {
		return models.QueueEntry{}, false
	}
	entry = q.entries[q.head]
	q.entries[q.head] = models.QueueEntry{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 32 && q.head*2 >= len(q.entries) {
		q.entries = append([]models.QueueEntry(nil), q.entries[q.head:]...)
		q.head = 0
	}
	return entry, true
}

// Remove drops the entry with the given id. Unknown ids are ignored.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:q.head]
	for _, e := range q.entries[q.head:] {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = models.QueueEntry{}
	}
	q.entries = kept
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries) - q.head
}

// Entries returns a copy of the pending entries, front first. Never nil.
func (q *Queue) Entries() []models.QueueEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]models.QueueEntry, len(q.entries)-q.head)
	copy(out, q.entries[q.head:])
	return out
}
