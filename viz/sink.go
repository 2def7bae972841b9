package viz

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sink records timestamped visualization payloads
type Sink interface {
	// Record records payload p under topic at simulation time ts
	Record(topic string, ts float64, p Payload) error
}

// Record is a recorded sink entry
type Record struct {
	Topic   string
	Time    float64
	Payload Payload
}

// Multi fans records out to all of its sinks.
type Multi []Sink

// Record records p in every sink and joins their errors.
func (m Multi) Record(topic string, ts float64, p Payload) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(topic, ts, p); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Isolated shields its callers from sink failures.
// Errors and panics of the wrapped sink are logged and counted, never returned.
type Isolated struct {
	sink     Sink
	logger   *slog.Logger
	failures atomic.Int64
}

// Isolate wraps s so its failures can't reach the caller.
func Isolate(s Sink, logger *slog.Logger) *Isolated {
	if logger == nil {
		logger = slog.Default()
	}

	return &Isolated{sink: s, logger: logger}
}

// Record records p in the wrapped sink. It always returns nil.
func (i *Isolated) Record(topic string, ts float64, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
		if err != nil {
			i.failures.Add(1)
			i.logger.Warn("visualization sink failed", "topic", topic, "time", ts, "err", err)
		}
		err = nil
	}()

	return i.sink.Record(topic, ts, p)
}

// Failures returns the number of failed records.
func (i *Isolated) Failures() int {
	return int(i.failures.Load())
}

// Memory keeps all records in memory.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory creates new in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores the record.
func (m *Memory) Record(topic string, ts float64, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, Record{Topic: topic, Time: ts, Payload: p})

	return nil
}

// Records returns all stored records in recording order.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, len(m.records))
	copy(out, m.records)

	return out
}

// Topic returns records stored under topic in recording order.
func (m *Memory) Topic(topic string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, r := range m.records {
		if r.Topic == topic {
			out = append(out, r)
		}
	}

	return out
}

// Log writes records to a structured logger at debug level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates new logging sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}

	return &Log{logger: logger}
}

// Record logs the record summary.
func (l *Log) Record(topic string, ts float64, p Payload) error {
	pts := p.Points()
	attrs := []any{"topic", topic, "time", ts, "kind", p.Kind(), "points", len(pts)}
	if len(pts) > 0 {
		last := pts[len(pts)-1]
		attrs = append(attrs, "x", last.X, "y", last.Y)
	}
	l.logger.Debug("record", attrs...)

	return nil
}
