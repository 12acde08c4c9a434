// internal/posting/log.go
package posting

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry is one line of a posting's append-only log.
type LogEntry struct {
	Seq    int64             `json:"seq"`
	At     time.Time         `json:"at"`
	Kind   string            `json:"kind"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Log appends JSONL entries to log.jsonl inside each posting directory,
// serialized per directory.
type Log struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{locks: make(map[string]*sync.Mutex)}
}

func (l *Log) dirLock(dir string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lock, ok := l.locks[dir]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	l.locks[dir] = lock
	return lock
}

func logPath(dir string) string {
	return filepath.Join(dir, "log.jsonl")
}

// count reads the log file and counts lines. Caller must hold the dir lock.
func (l *Log) count(dir string) (int64, error) {
	f, err := os.Open(logPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan log file: %w", err)
	}
	return count, nil
}

// Append adds an entry with an auto-incremented sequence number.
func (l *Log) Append(dir, kind string, detail map[string]string) error {
	lock := l.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.count(dir)
	if err != nil {
		return err
	}

	entry := &LogEntry{
		Seq:    existing + 1,
		At:     time.Now(),
		Kind:   kind,
		Detail: detail,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	f, err := os.OpenFile(logPath(dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// Tail returns the last N entries of the posting's log.
func (l *Log) Tail(dir string, limit int) ([]*LogEntry, error) {
	lock := l.dirLock(dir)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(logPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var entries []*LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal log entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
