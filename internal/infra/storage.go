package infra

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

const (
	statusFilePrefix = "dmypy-"
	lockFileName     = "tcmon.lock"
)

// FileStorage implements domain.DaemonStorage.
// Status and log files are named after a SHA-1 of the folder path so
// folders never collide and the project tree stays clean.
type FileStorage struct {
	root string
}

// NewFileStorage creates storage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{root: dir}
}

// Root returns the storage directory.
func (s *FileStorage) Root() string {
	return s.root
}

// Ensure creates the storage directory if absent.
func (s *FileStorage) Ensure() error {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// FolderHash returns the stable hash used to name a folder's files.
func FolderHash(folder domain.Folder) string {
	sum := sha1.Sum([]byte(folder.Path()))
	return hex.EncodeToString(sum[:])
}

// StatusFile returns the status file path for a folder.
func (s *FileStorage) StatusFile(folder domain.Folder) string {
	return filepath.Join(s.root, statusFilePrefix+FolderHash(folder)+".json")
}

// LogFile returns the daemon log file path for a folder.
func (s *FileStorage) LogFile(folder domain.Folder) string {
	return filepath.Join(s.root, statusFilePrefix+FolderHash(folder)+".log")
}

// ReadStatus parses the folder's status file.
func (s *FileStorage) ReadStatus(folder domain.Folder) (*domain.StatusFileEntry, error) {
	return ReadStatusFile(s.StatusFile(folder))
}

// ReadStatusFile parses a dmypy status file; nil, nil when it does not exist.
func ReadStatusFile(path string) (*domain.StatusFileEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.StatusFileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("invalid status file %s: %w", path, err)
	}
	return &entry, nil
}

// StatusFiles lists every status file currently in storage.
func (s *FileStorage) StatusFiles() ([]string, error) {
	return filepath.Glob(filepath.Join(s.root, statusFilePrefix+"*.json"))
}

// AcquireLock takes the single-instance lock for this storage root.
// It returns ok=false when another supervisor already holds it.
func (s *FileStorage) AcquireLock() (lock *flock.Flock, ok bool, err error) {
	if err := s.Ensure(); err != nil {
		return nil, false, err
	}
	lock = flock.New(filepath.Join(s.root, lockFileName))
	ok, err = lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock: %w", err)
	}
	return lock, ok, nil
}

// Ensure FileStorage implements domain.DaemonStorage.
var _ domain.DaemonStorage = (*FileStorage)(nil)
