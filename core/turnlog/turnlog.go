// Package turnlog persists completed conversation turns as JSONL, one
// object per line, one file per session.
package turnlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const DefaultDir = "data/logs"

// tsLayout is RFC3339 with millisecond precision and zone offset.
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one logged turn. Field order matches the line layout.
type Record struct {
	TS            time.Time `json:"-"`
	TurnID        int       `json:"turn_id"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	Status        string    `json:"status"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(struct {
		TS string `json:"ts"`
		alias
	}{
		TS:    r.TS.Format(tsLayout),
		alias: alias(r),
	})
}

// StorageError wraps any filesystem failure so callers can degrade
// instead of treating it as fatal.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("turn log storage failed during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Logger appends records to a session file. Safe for concurrent use,
// though the orchestrator writes strictly in turn order.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates the session log file under dir, named from the session
// start timestamp.
func Open(dir string, sessionStart time.Time) (*Logger, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Err: err}
	}

	name := fmt.Sprintf("session_%s.jsonl", sessionStart.Format("20060102_150405"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	return &Logger{file: file}, nil
}

// Append writes one record and syncs it to disk before returning.
func (l *Logger) Append(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return &StorageError{Op: "marshal", Err: err}
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return &StorageError{Op: "write", Err: os.ErrClosed}
	}
	if _, err := l.file.Write(line); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	if err := l.file.Sync(); err != nil {
		return &StorageError{Op: "sync", Err: err}
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}
