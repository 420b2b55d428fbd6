package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AttemptFile appends attempt records to a JSON Lines file. It is used when
// no NATS server is configured.
type AttemptFile struct {
	mu   sync.Mutex
	path string
}

// NewAttemptFile returns a store writing to path. The file and its parent
// directory are created on first write.
func NewAttemptFile(path string) *AttemptFile {
	return &AttemptFile{path: path}
}

// Path returns the backing file path.
func (f *AttemptFile) Path() string {
	return f.path
}

// RecordAttempt appends r as one line.
func (f *AttemptFile) RecordAttempt(ctx context.Context, r AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.prepare()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create attempts dir: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open attempts file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Malformed lines are
// skipped.
func (f *AttemptFile) Recent(ctx context.Context, limit int) ([]AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open attempts file: %w", err)
	}
	defer file.Close()

	var records []AttemptRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r AttemptRecord
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read attempts file: %w", err)
	}
	return newestFirst(records, limit), nil
}
