// Package progress writes the human-readable run log: one timestamped line per
// batch start, skip, write, and run completion. The log is append-only and is
// never read back for resumption; record files are the only resume state.
// Last, ReadFrom and Follow let an operator watch a long run from another
// process.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Log appends timestamped lines to a file. A nil *Log discards everything, so
// callers never need to check whether a progress log was configured.
type Log struct {
	path string
	lock *flock.Flock
	now  func() time.Time

	mu sync.Mutex
}

// Option customizes a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// Open prepares a log at path, creating its parent directory. An empty path
// returns a nil *Log.
func Open(path string, opts ...Option) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create progress log directory: %w", err)
	}
	l := &Log{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the log file path, or "" for a nil log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Printf formats one event and appends it as a single line.
func (l *Log) Printf(format string, args ...any) error {
	if l == nil {
		return nil
	}
	return l.append(fmt.Sprintf(format, args...))
}

func (l *Log) append(message string) error {
	message = strings.ReplaceAll(strings.TrimRight(message, "\n"), "\n", " ")
	line := l.now().UTC().Format(time.RFC3339Nano) + " " + message + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock progress log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open progress log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append progress log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close progress log: %w", err)
	}
	return nil
}
