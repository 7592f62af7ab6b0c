package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the conversation log.
type Store interface {
	Load() (Log, error)
	Save(Log) error
	Export(Log) (string, error)
	Clear() error
}

// FileStore keeps the log as one JSON file and writes exports next to it.
type FileStore struct {
	path      string
	exportDir string
	now       func() time.Time
}

// NewFileStore stores the log at path and exports into exportDir.
func NewFileStore(path string, exportDir string) *FileStore {
	return &FileStore{path: path, exportDir: exportDir, now: time.Now}
}

// Path is the history file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the log. A missing file is an empty log.
func (s *FileStore) Load() (Log, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Log{}, nil
	}
	if err != nil {
		return Log{}, fmt.Errorf("read history %q: %w", s.path, err)
	}

	var log Log
	if err := json.Unmarshal(data, &log); err != nil {
		return Log{}, fmt.Errorf("decode history %q: %w", s.path, err)
	}
	return log, nil
}

// Save atomically replaces the history file.
func (s *FileStore) Save(log Log) error {
	return writeJSONAtomic(s.path, log)
}

// Export writes log to a new timestamped file and returns its path.
func (s *FileStore) Export(log Log) (string, error) {
	stamp := s.now().UTC().Format("20060102-150405")
	path := filepath.Join(s.exportDir, "conversation-"+stamp+".json")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		path = filepath.Join(s.exportDir, fmt.Sprintf("conversation-%s-%d.json", stamp, n))
	}

	if err := writeJSONAtomic(path, log); err != nil {
		return "", fmt.Errorf("export history: %w", err)
	}
	return path, nil
}

// Clear removes the history file.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}

// MemoryStore keeps the log in memory; exports are kept in Exports.
type MemoryStore struct {
	Log     Log
	Exports []Log
	SaveErr error
}

func (m *MemoryStore) Load() (Log, error) { return m.Log, nil }

func (m *MemoryStore) Save(log Log) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Log = Log{ConversationID: log.ConversationID, Turns: append([]Turn(nil), log.Turns...)}
	return nil
}

func (m *MemoryStore) Export(log Log) (string, error) {
	m.Exports = append(m.Exports, log)
	return fmt.Sprintf("memory:%d", len(m.Exports)), nil
}

func (m *MemoryStore) Clear() error {
	m.Log = Log{}
	return nil
}
