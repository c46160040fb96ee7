package processed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FileSet keeps ids in a flat file, one per line. The file is read once
// into an in-memory index; new ids are appended and synced before
// MarkProcessed returns.
type FileSet struct {
	mu    sync.Mutex
	f     *os.File
	index map[string]struct{}
}

// OpenFile opens or creates the id file at path.
func OpenFile(path string) (*FileSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating processed directory: %w", err)
	}

	ids, err := ReadIDs(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening processed file: %w", err)
	}

	index := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		index[id] = struct{}{}
	}
	return &FileSet{f: f, index: index}, nil
}

// Contains implements Set.
func (s *FileSet) Contains(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok, nil
}

// MarkProcessed implements Set. Marking a known id is a no-op.
func (s *FileSet) MarkProcessed(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "processed.file.mark",
		trace.WithAttributes(attribute.String("comment.id", id)))
	defer span.End()

	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		return nil
	}
	if _, err := s.f.WriteString(id + "\n"); err != nil {
		span.RecordError(err)
		return fmt.Errorf("appending processed id: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("syncing processed file: %w", err)
	}
	s.index[id] = struct{}{}
	return nil
}

// Len returns the number of known ids.
func (s *FileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Close closes the file.
func (s *FileSet) Close() error {
	return s.f.Close()
}

// ReadIDs reads a flat id file, skipping blank lines and surrounding
// whitespace.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ids, nil
}
