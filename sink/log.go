// Package sink holds the event.Sink implementations the simulation can
// route classified records to.
package sink

import (
	"io"
	"log"
	"strings"
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/milk9111/contactsim/event"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LogSink prints one line per record and keeps per-label counts for a
// summary printed on Close.
type LogSink struct {
	mu       sync.Mutex
	logger   *log.Logger
	advances bool
	quiet    bool
	counts   *orderedmap.OrderedMap[string, int]
	printer  *message.Printer
}

type LogOption func(*LogSink)

// WithAdvances also prints pose advance records, which arrive every sub-step.
func WithAdvances(on bool) LogOption {
	return func(s *LogSink) { s.advances = on }
}

// WithQuiet suppresses the per-record lines and keeps only the summary.
func WithQuiet(on bool) LogOption {
	return func(s *LogSink) { s.quiet = on }
}

func NewLogSink(w io.Writer, opts ...LogOption) *LogSink {
	if w == nil {
		w = io.Discard
	}
	s := &LogSink{
		logger:  log.New(w, "", 0),
		counts:  orderedmap.NewOrderedMap[string, int](),
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LogSink) Emit(r event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryKey(r)
	n, _ := s.counts.Get(key)
	s.counts.Set(key, n+1)

	if s.quiet || (r.Kind == event.KindAdvance && !s.advances) {
		return nil
	}
	s.logger.Println(r.Message())
	return nil
}

// Count returns how many records were seen for a kind and label.
func (s *LogSink) Count(kind event.Kind, label event.Label) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.counts.Get(string(kind) + " " + string(label))
	return n
}

// Summary lists the counts in first-seen order.
func (s *LogSink) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, key := range s.counts.Keys() {
		n, _ := s.counts.Get(key)
		b.WriteString(s.printer.Sprintf("%-34s %8d\n", key, n))
	}
	return b.String()
}

// Close prints the summary.
func (s *LogSink) Close() error {
	summary := s.Summary()
	if summary == "" {
		return nil
	}
	s.logger.Print("event summary:\n" + summary)
	return nil
}

func summaryKey(r event.Record) string {
	return string(r.Kind) + " " + string(r.Label)
}
