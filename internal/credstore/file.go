package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/models"
)

// FileStore keeps the credential in a single file with 0600 permissions.
type FileStore struct {
	path   string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created lazily on Set.
func NewFileStore(path string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads the credential file. A missing, empty, or unreadable file is
// reported as "no credential".
func (s *FileStore) Get() (models.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Cannot stat credential file")
		}
		return "", false
	}

	// Credential files should be readable only by owner (0600 or stricter)
	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode&0077 != 0 {
			s.logger.Warn().
				Str("path", s.path).
				Str("mode", fmt.Sprintf("%04o", mode)).
				Msgf("Credential file has insecure permissions. Consider using 'chmod 600 %s'", s.path)
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Cannot read credential file")
		return "", false
	}

	cred := models.Credential(strings.TrimSpace(string(data)))
	if cred.IsZero() {
		return "", false
	}
	return cred, true
}

// Set writes the credential atomically (temp file + rename).
func (s *FileStore) Set(cred models.Credential) error {
	if cred.IsZero() {
		return fmt.Errorf("cannot store empty credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(string(cred)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save credential file: %w", err)
	}
	return nil
}

// Remove deletes the credential file.
func (s *FileStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}
