// Package runlog appends run results to a JSON-lines file. Earlier lines are
// never rewritten.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"drivecheck/engine"
)

// Log is an open run log.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &Log{f: f, path: path}, nil
}

// Append writes res as one line and syncs it to disk.
func (l *Log) Append(res *engine.RunResult) error {
	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", res.ID, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	return l.f.Sync()
}

func (l *Log) Close() error {
	return l.f.Close()
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }
