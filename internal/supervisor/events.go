package supervisor

import (
	"sync"

	"github.com/pedrox86lopes/MagnetStream/internal/classify"
)

// Update is one item delivered on a run's update channel: either a lifecycle
// event or, exactly once as the final item, the terminal outcome.
type Update struct {
	Event   classify.Event
	Outcome *Outcome
}

// Terminal reports whether this update carries the run's outcome.
func (u Update) Terminal() bool { return u.Outcome != nil }

// eventQueue is an unbounded single-producer/single-consumer conduit from
// the read loop to the caller. The producer never blocks waiting for the
// consumer to drain; a pump goroutine moves buffered updates onto the
// delivery channel, which closes once the queue is closed and drained.
type eventQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Update
	closed  bool
	out     chan Update
}

func newEventQueue() *eventQueue {
	q := &eventQueue{out: make(chan Update)}
	q.cond = sync.NewCond(&q.mu)
	go q.pump()
	return q
}

func (q *eventQueue) push(update Update) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, update)
	q.cond.Signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Signal()
}

func (q *eventQueue) pump() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			close(q.out)
			return
		}
		update := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		q.out <- update
	}
}
