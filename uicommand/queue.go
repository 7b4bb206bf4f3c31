package uicommand

import "sync"

// Sink receives flushed batches. The native layer implements it.
type Sink interface {
	ApplyCommands(contextID int32, batch []Command) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(contextID int32, batch []Command) error

// ApplyCommands calls f.
func (f SinkFunc) ApplyCommands(contextID int32, batch []Command) error {
	return f(contextID, batch)
}

// Queue is the per-context command buffer.
//
// The script side appends; either side may drain. mu guards the pending
// slice, flushMu orders complete drain-and-apply cycles so that batches
// reach a sink in append order.
type Queue struct {
	contextID int32

	mu      sync.Mutex
	pending []Command

	flushMu sync.Mutex
}

// NewQueue creates an empty queue for the given context.
func NewQueue(contextID int32) *Queue {
	return &Queue{contextID: contextID}
}

// ContextID returns the owning context identifier.
func (q *Queue) ContextID() int32 {
	return q.contextID
}

// Add appends a command. It never blocks on a flush in progress.
func (q *Queue) Add(cmd Command) {
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain removes and returns every pending command in append order.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	return batch
}

// Flush drains the queue into sink and returns once the sink has applied
// the batch. Commands appended while the sink runs go to the next flush.
// A nil sink leaves the queue untouched.
func (q *Queue) Flush(sink Sink) error {
	if sink == nil {
		return nil
	}
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	batch := q.Drain()
	if len(batch) == 0 {
		return nil
	}
	return sink.ApplyCommands(q.contextID, batch)
}
