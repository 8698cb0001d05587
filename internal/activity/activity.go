// Package activity keeps an in-memory, newest-first log of orchestration
// events for the diagnostics screen.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxEntries caps the ring buffer.
const MaxEntries = 500

type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

// Entry is one diagnostic event.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
}

// Log is a bounded activity log with snapshot subscriptions. Create one per
// process with New and tear it down with Close.
type Log struct {
	mu      sync.Mutex
	entries []Entry // newest first
	subs    map[chan []Entry]struct{}
	closed  bool
	logger  *slog.Logger
	now     func() time.Time
}

func New(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		subs:   make(map[chan []Entry]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

// Add records an entry and mirrors it to the structured logger.
func (l *Log) Add(tag, message string, level Level) {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Tag:       tag,
		Message:   message,
		Level:     level,
	}

	l.logger.Log(context.Background(), slogLevel(level), message, "tag", tag, "level", string(level))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	next := make([]Entry, 0, min(len(l.entries)+1, MaxEntries))
	next = append(next, entry)
	if len(l.entries) >= MaxEntries {
		next = append(next, l.entries[:MaxEntries-1]...)
	} else {
		next = append(next, l.entries...)
	}
	l.entries = next
	l.publish()
}

func (l *Log) Debug(tag, message string)   { l.Add(tag, message, LevelDebug) }
func (l *Log) Info(tag, message string)    { l.Add(tag, message, LevelInfo) }
func (l *Log) Warning(tag, message string) { l.Add(tag, message, LevelWarning) }
func (l *Log) Error(tag, message string)   { l.Add(tag, message, LevelError) }
func (l *Log) Success(tag, message string) { l.Add(tag, message, LevelSuccess) }

// Debugf and friends format the message with fmt.Sprintf.
func (l *Log) Debugf(tag, format string, args ...any) { l.Debug(tag, fmt.Sprintf(format, args...)) }
func (l *Log) Infof(tag, format string, args ...any)  { l.Info(tag, fmt.Sprintf(format, args...)) }
func (l *Log) Warningf(tag, format string, args ...any) {
	l.Warning(tag, fmt.Sprintf(format, args...))
}
func (l *Log) Errorf(tag, format string, args ...any) { l.Error(tag, fmt.Sprintf(format, args...)) }
func (l *Log) Successf(tag, format string, args ...any) {
	l.Success(tag, fmt.Sprintf(format, args...))
}

// Entries returns the current entries, newest first. The returned slice is
// never modified by the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		return []Entry{}
	}
	return l.entries
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.publish()
}

// Text renders every entry as "[date] [LEVEL] [tag] message", newest first.
func (l *Log) Text() string {
	entries := l.Entries()
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s] [%s] [%s] %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Level, e.Tag, e.Message)
	}
	return sb.String()
}

// Subscribe returns a channel that yields the current entries immediately and
// then the full list after every change, keeping only the latest snapshot for
// slow readers. It is closed when ctx is done or the log is closed.
func (l *Log) Subscribe(ctx context.Context) <-chan []Entry {
	ch := make(chan []Entry, 1)

	l.mu.Lock()
	if l.closed {
		close(ch)
		l.mu.Unlock()
		return ch
	}
	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	ch <- entries
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		if _, ok := l.subs[ch]; ok {
			delete(l.subs, ch)
			close(ch)
		}
		l.mu.Unlock()
	}()

	return ch
}

// Close ends all subscriptions. Entries added afterwards are only mirrored to
// the structured logger.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *Log) publish() {
	snapshot := l.entries
	if snapshot == nil {
		snapshot = []Entry{}
	}
	for ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
