// Package progress carries job progress from long running operations to
// whoever is watching them.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Sink receives progress updates. Percent is always within [0,100].
type Sink interface {
	Progress(percent int, msg string)
	Log(msg string)
}

// Discard is a Sink ignoring everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Progress(int, string) {}
func (discard) Log(string)           {}

// Logger is a Sink writing updates to zap logger. Repeated updates with the
// same percentage and message are reported once.
type Logger struct {
	log *zap.Logger

	mu   sync.Mutex
	last int
	msg  string
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log, last: -1}
}

func (l *Logger) Progress(percent int, msg string) {
	percent = clamp(percent)

	l.mu.Lock()
	defer l.mu.Unlock()
	if percent == l.last && msg == l.msg {
		return
	}
	l.last, l.msg = percent, msg
	l.log.Info("Progress", zap.Int("percent", percent), zap.String("step", msg))
}

func (l *Logger) Log(msg string) {
	l.log.Info(msg)
}

// Range maps progress of a nested operation into [from,to] of the parent
// sink, so operation reporting its own 0..100 progress could be used as
// a step of a larger one.
func Range(parent Sink, from, to int) Sink {
	if parent == nil {
		parent = Discard
	}
	from, to = clamp(from), clamp(to)
	if to < from {
		from, to = to, from
	}
	return &scaled{parent: parent, from: from, to: to}
}

type scaled struct {
	parent   Sink
	from, to int
}

func (s *scaled) Progress(percent int, msg string) {
	s.parent.Progress(s.from+clamp(percent)*(s.to-s.from)/100, msg)
}

func (s *scaled) Log(msg string) {
	s.parent.Log(msg)
}

// Step returns percent of completion after idx out of total items were done.
func Step(idx, total int) int {
	if total <= 0 {
		return 100
	}
	return clamp(idx * 100 / total)
}

func clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}
