// ABOUTME: Unbounded FIFO feeding the stage-1 workers.
// ABOUTME: Push never blocks, so the dispatch loop keeps routing responses.

package session

import "sync"

// queue is an unbounded FIFO of items. Pop blocks until an item arrives.
type queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []item
	head  int
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *queue) pop() item {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		q.cond.Wait()
	}
	it := q.items[q.head]
	q.items[q.head] = item{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= 64 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return it
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
