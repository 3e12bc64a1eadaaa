package sink

import (
	"sync"

	"github.com/milk9111/contactsim/event"
)

// Recorder keeps every record in memory.
type Recorder struct {
	mu      sync.RWMutex
	records []event.Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(rec event.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []event.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]event.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Count returns the number of records of kind. An empty label matches any.
func (r *Recorder) Count(kind event.Kind, label event.Label) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.records {
		if rec.Kind == kind && (label == "" || rec.Label == label) {
			n++
		}
	}
	return n
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
