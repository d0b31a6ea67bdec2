// Package eventlog records threshold crossings into per-category append-only
// log files. Every entry carries a per-category sequence number and a local
// timestamp, and entries of one category appear in the file in the order
// their numbers were assigned.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cyberinferno/sensorgate/sequence"
)

// ErrNoSink is returned by Record for a category without a log file.
var ErrNoSink = errors.New("no log sink for category")

// Entry describes one recorded log line.
type Entry struct {
	Category  int
	Sequence  uint64
	Timestamp string
	Value     int
	Line      string
}

// Sink pairs a log destination with the counter that numbers its entries.
type Sink struct {
	Writer  io.Writer
	Counter sequence.Counter
}

type categorySink struct {
	mu      sync.Mutex
	writer  io.Writer
	counter sequence.Counter
}

// Recorder appends numbered entries to per-category sinks. It is safe for
// concurrent use. Each category has its own lock covering numbering,
// timestamping and the append, so categories never contend with each other.
type Recorder struct {
	sinks map[int]*categorySink
	clock Clock
}

// NewRecorder builds a Recorder over the given sinks. A nil counter defaults to
// an in-memory counter starting at 1, and a nil clock defaults to time.Now.
//
// Parameters:
//   - sinks: Log destinations keyed by category
//   - clock: Source of timestamps
//
// Returns:
//   - A Recorder ready for use
func NewRecorder(sinks map[int]Sink, clock Clock) *Recorder {
	if clock == nil {
		clock = time.Now
	}

	r := &Recorder{
		sinks: make(map[int]*categorySink, len(sinks)),
		clock: clock,
	}

	for category, s := range sinks {
		counter := s.Counter
		if counter == nil {
			counter = sequence.NewMemoryCounter(0)
		}

		r.sinks[category] = &categorySink{writer: s.Writer, counter: counter}
	}

	return r
}

// Categories returns the categories that have a sink, in ascending order.
func (r *Recorder) Categories() []int {
	out := make([]int, 0, len(r.sinks))
	for c := range r.sinks {
		out = append(out, c)
	}

	sort.Ints(out)
	return out
}

// Record assigns the next sequence number for category and appends one line
// to its sink. The sequence number is consumed even when the write fails, so
// a later entry never reuses it.
//
// Parameters:
//   - ctx: Context passed to the counter backend
//   - category: The sensor category; must have a sink
//   - value: The sensor value to record
//
// Returns:
//   - The entry that was (or was attempted to be) written
//   - ErrNoSink for an unknown category, or the counter or write error
func (r *Recorder) Record(ctx context.Context, category int, value int) (Entry, error) {
	s, ok := r.sinks[category]
	if !ok {
		return Entry{}, fmt.Errorf("%w %d", ErrNoSink, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.counter.Next(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("next sequence for category %d: %w", category, err)
	}

	e := Entry{
		Category:  category,
		Sequence:  seq,
		Timestamp: FormatTimestamp(r.clock()),
		Value:     value,
	}
	e.Line = FormatLine(e.Sequence, e.Timestamp, e.Value)

	if _, err := io.WriteString(s.writer, e.Line); err != nil {
		return e, fmt.Errorf("append entry %d for category %d: %w", seq, category, err)
	}

	return e, nil
}

// FormatLine renders one log line: a 9-digit zero-padded sequence number, the
// timestamp and the value, terminated by a newline.
func FormatLine(seq uint64, timestamp string, value int) string {
	return fmt.Sprintf("%09d %s Value: %d\n", seq, timestamp, value)
}
