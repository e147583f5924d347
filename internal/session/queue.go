package session

// pendingQueue holds commands composed while the session is not open.
// Bounded: pushing onto a full queue evicts the oldest entry. Not
// goroutine-safe; the session's mutex guards it.
type pendingQueue struct {
	max     int
	items   []Command
	dropped int64
}

func newPendingQueue(max int) *pendingQueue {
	if max < 1 {
		max = 1
	}
	return &pendingQueue{max: max}
}

// push appends cmd, evicting the oldest entry when full. Reports
// whether an entry was dropped.
func (q *pendingQueue) push(cmd Command) bool {
	evicted := false
	if len(q.items) >= q.max {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, cmd)
	return evicted
}

// drain removes and returns all entries in FIFO order.
func (q *pendingQueue) drain() []Command {
	out := q.items
	q.items = nil
	return out
}

func (q *pendingQueue) len() int { return len(q.items) }

func (q *pendingQueue) clear() { q.items = nil }
