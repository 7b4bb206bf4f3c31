package uicommand

import "sync"

// Recorder is a Sink that keeps every applied command. It also forwards
// to an optional downstream sink, which lets tools tap a live stream.
type Recorder struct {
	Next Sink

	mu       sync.Mutex
	commands []Command
	batches  int
}

// ApplyCommands records the batch and forwards it.
func (r *Recorder) ApplyCommands(contextID int32, batch []Command) error {
	r.mu.Lock()
	r.commands = append(r.commands, batch...)
	r.batches++
	r.mu.Unlock()
	if r.Next != nil {
		return r.Next.ApplyCommands(contextID, batch)
	}
	return nil
}

// Commands returns a copy of everything recorded so far.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Batches returns the number of non-empty flushes seen.
func (r *Recorder) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// Reset forgets recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.batches = 0
	r.mu.Unlock()
}
