// Package applog is the fire-and-forget diagnostic logger used by the report
// pipeline. Logging never blocks and never fails the caller.
package applog

import (
	"log"
	"sync"
)

// Level of a log entry
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelIcons = map[Level]string{
	LevelDebug: "🔎",
	LevelInfo:  "✅",
	LevelWarn:  "⚠️",
	LevelError: "🔴",
}

// Logger receives diagnostic entries tagged with the calling context
type Logger interface {
	Log(context, message string, level Level)
}

// Entry is one queued log line
type Entry struct {
	Context string
	Message string
	Level   Level
}

// AsyncLogger writes entries from a background goroutine. When the buffer is
// full, entries are dropped instead of blocking the caller.
type AsyncLogger struct {
	entries chan Entry
	out     *log.Logger
	sink    func(Entry)

	mu      sync.Mutex
	dropped int
	closed  bool
	done    chan struct{}
}

// NewAsyncLogger starts a logger writing to out (log.Default() when nil)
func NewAsyncLogger(out *log.Logger, buffer int) *AsyncLogger {
	if out == nil {
		out = log.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	l := &AsyncLogger{
		entries: make(chan Entry, buffer),
		out:     out,
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// WithSink forwards every written entry to fn as well (remote log shipping)
func (l *AsyncLogger) WithSink(fn func(Entry)) *AsyncLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = fn
	return l
}

// Log queues an entry
func (l *AsyncLogger) Log(context, message string, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.entries <- Entry{Context: context, Message: message, Level: level}:
	default:
		l.dropped++
	}
}

// Dropped returns how many entries were discarded on a full buffer
func (l *AsyncLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes queued entries and stops the writer
func (l *AsyncLogger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()
	<-l.done
}

func (l *AsyncLogger) run() {
	defer close(l.done)
	for e := range l.entries {
		l.out.Printf("%s [%s] %s: %s", levelIcons[e.Level], e.Level, e.Context, e.Message)
		l.mu.Lock()
		sink := l.sink
		l.mu.Unlock()
		if sink != nil {
			sink(e)
		}
	}
}

// Nop discards everything
type Nop struct{}

// Log implements Logger
func (Nop) Log(string, string, Level) {}
