package infra

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// virtualenvDirs are checked, in order, under the folder root.
var virtualenvDirs = []string{".venv", "venv"}

// InterpreterResolverImpl implements domain.InterpreterResolver.
// Order: explicit python_path, a virtualenv inside the folder, python3 on PATH.
type InterpreterResolverImpl struct {
	fs       domain.FileSystemManager
	lookPath func(string) (string, error)
}

// NewInterpreterResolver creates an interpreter resolver backed by the real PATH.
func NewInterpreterResolver(fs domain.FileSystemManager) domain.InterpreterResolver {
	return &InterpreterResolverImpl{fs: fs, lookPath: exec.LookPath}
}

// NewInterpreterResolverWithLookPath creates a resolver with a custom PATH lookup (for testing).
func NewInterpreterResolverWithLookPath(fs domain.FileSystemManager, lookPath func(string) (string, error)) domain.InterpreterResolver {
	return &InterpreterResolverImpl{fs: fs, lookPath: lookPath}
}

// PythonPath returns the interpreter for the folder, or "" if none is found.
func (r *InterpreterResolverImpl) PythonPath(ctx context.Context, folder domain.Folder, settings domain.Settings) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if settings.PythonPath != "" {
		// Returned as configured; a bare "python" is left for the caller to
		// treat as a placeholder.
		return ExpandWorkspaceFolder(r.fs.ExpandHome(settings.PythonPath), folder), nil
	}

	for _, dir := range virtualenvDirs {
		candidate := filepath.Join(folder.Path(), dir, "bin", "python")
		if r.fs.Exists(candidate) {
			return candidate, nil
		}
	}

	if path, err := r.lookPath("python3"); err == nil {
		return path, nil
	}
	return "", nil
}

// Ensure InterpreterResolverImpl implements domain.InterpreterResolver.
var _ domain.InterpreterResolver = (*InterpreterResolverImpl)(nil)
