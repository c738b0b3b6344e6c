package order

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 1 << 20

// Compile-time assertion that FileStore satisfies the Store interface.
var _ Store = (*FileStore)(nil)

// FileStore is a [Store] backed by an append-only JSON-lines file. Each line
// holds one [Record]. Appends are serialised by a single-writer mutex and
// written with O_APPEND, so a crash can at worst leave a truncated last line,
// which Load skips.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore returns a [FileStore] writing to path. The file and its parent
// directory are created lazily on the first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load implements [Store.Load]. A missing file yields an empty history.
// Malformed lines are logged and skipped.
func (s *FileStore) Load(ctx context.Context) (History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	defer f.Close()

	records, err := decodeRecords(ctx, f, s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	return HistoryOf(records), nil
}

// Append implements [Store.Append].
func (s *FileStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrHistoryUnavailable, err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("order: marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %q: %w", ErrHistoryUnavailable, dir, err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	terminated, err := endsWithNewline(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: read %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	if !terminated {
		// Close off a line truncated by a crash so it fails alone.
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	return nil
}

// endsWithNewline reports whether f is empty or ends with a newline.
func endsWithNewline(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	if fi.Size() == 0 {
		return true, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], fi.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// Ping implements [Store.Ping]. It succeeds when the file exists and is
// readable, or when it does not exist yet but its directory does.
func (s *FileStore) Ping(context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %q: %w", ErrHistoryUnavailable, s.path, err)
	}
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: stat dir %q: %w", ErrHistoryUnavailable, dir, err)
	}
	return nil
}

// decodeRecords reads JSON-lines records from r, skipping blank and
// malformed lines.
func decodeRecords(ctx context.Context, r io.Reader, name string) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("order: skipping malformed history line",
				"file", name,
				"line", lineNo,
				"err", err,
			)
			continue
		}
		if len(rec.Items) == 0 {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
