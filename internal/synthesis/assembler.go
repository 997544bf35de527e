package synthesis

import (
	"bytes"
	"sync"
)

// Assembler collects the audio chunks of each request id between its turn
// start and turn end markers.
type Assembler struct {
	mu      sync.Mutex
	buffers map[string]*bytes.Buffer
}

func NewAssembler() *Assembler {
	return &Assembler{buffers: make(map[string]*bytes.Buffer)}
}

// Start creates an empty buffer for id, replacing any existing one.
func (a *Assembler) Start(id string) {
	a.mu.Lock()
	a.buffers[id] = &bytes.Buffer{}
	a.mu.Unlock()
}

// Append reports false when id has no active buffer; the chunk is dropped.
func (a *Assembler) Append(id string, chunk []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[id]
	if !ok {
		return false
	}
	buf.Write(chunk)
	return true
}

// Finish removes the buffer for id and returns its contents.
func (a *Assembler) Finish(id string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[id]
	if !ok {
		return nil, false
	}
	delete(a.buffers, id)
	return buf.Bytes(), true
}

func (a *Assembler) Discard(id string) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

func (a *Assembler) Reset() {
	a.mu.Lock()
	a.buffers = make(map[string]*bytes.Buffer)
	a.mu.Unlock()
}

func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}
