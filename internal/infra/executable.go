package infra

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// DefaultDmypyCommand is used when no executable is configured.
const DefaultDmypyCommand = "dmypy"

// interpreterModuleArgs run the daemon client through an interpreter.
var interpreterModuleArgs = []string{"-m", "mypy.dmypy"}

// ExecutableResolverImpl implements domain.ExecutableResolver.
// Bare command names are looked up on PATH; paths are expanded
// (~, ${workspaceFolder}) and must exist.
type ExecutableResolverImpl struct {
	fs       domain.FileSystemManager
	lookPath func(string) (string, error)
}

// NewExecutableResolver creates a resolver backed by the real PATH.
func NewExecutableResolver(fs domain.FileSystemManager) domain.ExecutableResolver {
	return &ExecutableResolverImpl{fs: fs, lookPath: exec.LookPath}
}

// NewExecutableResolverWithLookPath creates a resolver with a custom PATH lookup (for testing).
func NewExecutableResolverWithLookPath(fs domain.FileSystemManager, lookPath func(string) (string, error)) domain.ExecutableResolver {
	return &ExecutableResolverImpl{fs: fs, lookPath: lookPath}
}

// Resolve returns the executable to run for the folder.
func (r *ExecutableResolverImpl) Resolve(folder domain.Folder, settings domain.Settings, interpreter string) (domain.Executable, error) {
	if settings.RunUsingActiveInterpreter {
		if interpreter == "" {
			return domain.Executable{}, unresolved(folder,
				"Could not run mypy: no active interpreter. Please activate an interpreter or "+
					"switch off the run_using_active_interpreter setting.")
		}
		return domain.Executable{
			Path:            interpreter,
			LeadingArgs:     append([]string(nil), interpreterModuleArgs...),
			InterpreterMode: true,
		}, nil
	}

	configured := settings.DmypyExecutable
	if configured == "" {
		configured = DefaultDmypyCommand
	}

	if isCommandName(configured) {
		path, err := r.lookPath(configured)
		if err != nil {
			return domain.Executable{}, unresolved(folder, fmt.Sprintf(
				"The mypy daemon executable ('%s') was not found on your PATH. "+
					"Please install mypy or adjust the dmypy_executable setting.", configured))
		}
		return domain.Executable{Path: path}, nil
	}

	path := ExpandWorkspaceFolder(r.fs.ExpandHome(configured), folder)
	if !r.fs.Exists(path) {
		return domain.Executable{}, unresolved(folder, fmt.Sprintf(
			"The mypy daemon executable ('%s') was not found. "+
				"Please install mypy or adjust the dmypy_executable setting.", path))
	}
	return domain.Executable{Path: path}, nil
}

// isCommandName reports whether s has no directory component.
func isCommandName(s string) bool {
	return filepath.Dir(s) == "." && filepath.Base(s) == s
}

func unresolved(folder domain.Folder, msg string) error {
	return &domain.CheckError{
		Kind:    domain.KindExecutableUnresolved,
		Folder:  folder,
		Message: msg,
	}
}

// Ensure ExecutableResolverImpl implements domain.ExecutableResolver.
var _ domain.ExecutableResolver = (*ExecutableResolverImpl)(nil)
