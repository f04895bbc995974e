package rules

// pendingEvent is an event waiting in a context's queue.
type pendingEvent struct {
	Event EventType
	Arg   Arg
}

// eventQueue holds the events a skill produced, resolved in FIFO order once
// the skill body finishes.
type eventQueue struct {
	items []pendingEvent
}

// Push adds an event to the back of the queue.
func (q *eventQueue) Push(item pendingEvent) {
	q.items = append(q.items, item)
}

// Pop removes the event at the front of the queue.
func (q *eventQueue) Pop() (pendingEvent, bool) {
	if len(q.items) == 0 {
		return pendingEvent{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue has no events.
func (q *eventQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Drain moves every event of other to the back of q.
func (q *eventQueue) Drain(other *eventQueue) {
	q.items = append(q.items, other.items...)
	other.items = nil
}
