package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// workspaceFolderToken is replaced by the folder path in configured executables.
const workspaceFolderToken = "${workspaceFolder}"

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	home, _ := os.UserHomeDir()
	return &FileSystemManagerImpl{homeDir: home}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	expanded := fm.ExpandHome(path)
	_, err := os.Stat(expanded)
	return err == nil
}

// Size returns the size of the file at path.
func (fm *FileSystemManagerImpl) Size(path string) (int64, error) {
	info, err := os.Stat(fm.ExpandHome(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes a single file. A missing file is not an error.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	err := os.Remove(fm.ExpandHome(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// ExpandWorkspaceFolder replaces the ${workspaceFolder} token with the folder path.
func ExpandWorkspaceFolder(path string, folder domain.Folder) string {
	return strings.ReplaceAll(path, workspaceFolderToken, folder.Path())
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
