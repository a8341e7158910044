package infrastructure

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"prodRelayWs/internal/modules/relay/domain"
)

// FileStore persists the whole room→messages mapping as a single JSON record,
// rewritten wholesale on every save. This is deliberately not a high-throughput
// store: one small record, synchronous writes, and fail-soft everywhere so a
// broken disk never takes the relay down.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the backing record. A missing or unreadable file yields an empty
// history; corruption is logged, never propagated.
func (s *FileStore) Load() domain.History {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("message store read failed", slog.String("path", s.path), slog.Any("error", err))
		}
		return domain.History{}
	}

	var hist domain.History
	if err := json.Unmarshal(data, &hist); err != nil {
		slog.Error("message store corrupt, starting empty", slog.String("path", s.path), slog.Any("error", err))
		return domain.History{}
	}
	if hist == nil {
		hist = domain.History{}
	}
	return hist
}

// Save overwrites the backing record with the full history. Errors are
// returned for the caller to log; in-memory state stays authoritative either
// way.
func (s *FileStore) Save(hist domain.History) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
