package synthesis

import (
	"fmt"
	"sync"
	"time"
)

type Result struct {
	Audio []byte
	Err   error
}

// Pending is an in-flight conversion. Its result is delivered exactly once.
type Pending struct {
	ID        string
	CreatedAt time.Time
	done      chan Result
}

func (p *Pending) Done() <-chan Result {
	return p.done
}

// PendingTable tracks in-flight conversions by request id. Whoever removes an
// entry first delivers its result; every later attempt is a no-op.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*Pending
}

func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]*Pending)}
}

func (t *PendingTable) Register(id string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		return nil, fmt.Errorf("request %s already pending", id)
	}
	p := &Pending{
		ID:        id,
		CreatedAt: time.Now(),
		done:      make(chan Result, 1),
	}
	t.entries[id] = p
	return p, nil
}

func (t *PendingTable) Resolve(id string, audio []byte) bool {
	if audio == nil {
		audio = []byte{}
	}
	return t.complete(id, Result{Audio: audio})
}

func (t *PendingTable) Reject(id string, err error) bool {
	return t.complete(id, Result{Err: err})
}

// RejectAll fails every pending entry with err and empties the table.
func (t *PendingTable) RejectAll(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*Pending)
	t.mu.Unlock()

	for _, p := range entries {
		p.done <- Result{Err: err}
	}
	return len(entries)
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *PendingTable) complete(id string, r Result) bool {
	t.mu.Lock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	p.done <- r
	return true
}
