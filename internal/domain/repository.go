package domain

import "context"

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a running PID.
	Name(pid int) (string, error)
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// Size returns the size of a regular file.
	Size(path string) (int64, error)

	// Delete removes a file.
	Delete(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// ExecResult is the raw result of a finished subprocess.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandExecutor runs a subprocess to completion, capturing stdout and
// stderr separately. A non-zero exit is not an error; err is only set
// when the process could not be started or waited on.
type CommandExecutor interface {
	Run(ctx context.Context, dir, name string, args []string) (ExecResult, error)
}

// Executable is a resolved daemon invocation prefix.
type Executable struct {
	Path            string
	LeadingArgs     []string // e.g. "-m mypy.dmypy" in interpreter mode
	InterpreterMode bool
}

// ExecutableResolver locates the daemon binary for a folder.
// It returns a *CheckError of KindExecutableUnresolved when nothing usable exists.
type ExecutableResolver interface {
	Resolve(folder Folder, settings Settings, interpreter string) (Executable, error)
}

// InterpreterResolver finds the active Python interpreter for a folder.
// An empty path means no interpreter is known.
type InterpreterResolver interface {
	PythonPath(ctx context.Context, folder Folder, settings Settings) (string, error)
}

// StatusFileEntry is the content dmypy writes into its status file.
type StatusFileEntry struct {
	PID            int    `json:"pid"`
	ConnectionName string `json:"connection_name"`
}

// DaemonStorage places per-folder status and log files under a private root.
type DaemonStorage interface {
	// Root returns the storage directory.
	Root() string

	// Ensure creates the storage directory if absent.
	Ensure() error

	// StatusFile returns the status file path for a folder.
	StatusFile(folder Folder) string

	// LogFile returns the daemon log file path for a folder.
	LogFile(folder Folder) string

	// ReadStatus parses the status file; nil, nil when it does not exist.
	ReadStatus(folder Folder) (*StatusFileEntry, error)

	// StatusFiles lists every status file currently in storage.
	StatusFiles() ([]string, error)
}

// DiagnosticSink receives diagnostic updates and user-facing warnings.
type DiagnosticSink interface {
	// Replace swaps the full diagnostic set of a folder, grouped by file.
	Replace(folder Folder, byFile map[string][]Diagnostic)

	// Clear empties a folder's diagnostics.
	Clear(folder Folder)

	// Warn shows an advisory message.
	Warn(w Warning)
}

// ChangeNotifier delivers file change events for watched folders.
type ChangeNotifier interface {
	// Watch starts delivering events for a folder tree.
	Watch(folder Folder) error

	// Unwatch stops delivering events for a folder tree.
	Unwatch(folder Folder) error

	// Events returns the event stream.
	Events() <-chan ChangeEvent

	// Close releases the underlying watcher.
	Close() error
}
