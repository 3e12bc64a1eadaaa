package sink

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/milk9111/contactsim/event"
)

type namedSink struct {
	name string
	sink event.Sink
}

// Fanout delivers every record to each of its sinks in order. A failing sink
// is logged and the rest still receive the record.
type Fanout struct {
	sinks    []namedSink
	failures map[string]int
}

func NewFanout() *Fanout {
	return &Fanout{failures: map[string]int{}}
}

// Add appends a sink. Nil sinks are ignored.
func (f *Fanout) Add(name string, s event.Sink) *Fanout {
	if s == nil {
		return f
	}
	f.sinks = append(f.sinks, namedSink{name: name, sink: s})
	return f
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Emit(r event.Record) error {
	var errs []error
	for _, ns := range f.sinks {
		if err := ns.sink.Emit(r); err != nil {
			f.failures[ns.name]++
			log.Printf("Fanout: sink %s rejected %s: %v", ns.name, r.Kind, err)
			errs = append(errs, fmt.Errorf("%s: %w", ns.name, err))
		}
	}
	return errors.Join(errs...)
}

// Failures returns how many records a named sink rejected.
func (f *Fanout) Failures(name string) int {
	return f.failures[name]
}

// Close closes every sink that implements io.Closer, last added first.
func (f *Fanout) Close() error {
	var errs []error
	for i := len(f.sinks) - 1; i >= 0; i-- {
		c, ok := f.sinks[i].sink.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.sinks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
