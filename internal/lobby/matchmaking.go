package lobby

import (
	"sync"
	"time"
)

// QueueEntry is one waiting player. Grounded on the pop-and-pair shape used
// by other_examples' poker-engine matchmaking queue, simplified to pure
// in-memory FIFO since spec.md has no persistent-queue requirement.
type QueueEntry struct {
	ClientID    string
	DisplayName string
	JoinedAt    time.Time
}

// Queue is a FIFO matchmaking pool: Enqueue adds a waiting player, and
// TryPair pops the two longest-waiting entries whenever at least two are
// present.
type Queue struct {
	mu      sync.Mutex
	waiting []QueueEntry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds clientID to the back of the queue. A client already queued
// is left untouched (idempotent re-search).
func (q *Queue) Enqueue(clientID, displayName string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.waiting {
		if e.ClientID == clientID {
			return
		}
	}
	q.waiting = append(q.waiting, QueueEntry{ClientID: clientID, DisplayName: displayName, JoinedAt: time.Now()})
}

// Cancel removes clientID from the queue, reporting whether it was present.
func (q *Queue) Cancel(clientID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.waiting {
		if e.ClientID == clientID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// TryPair pops the two oldest waiting entries, if any pair exists.
func (q *Queue) TryPair() (a, b QueueEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) < 2 {
		return QueueEntry{}, QueueEntry{}, false
	}
	a, b = q.waiting[0], q.waiting[1]
	q.waiting = q.waiting[2:]
	return a, b, true
}

// Len reports the number of players currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
