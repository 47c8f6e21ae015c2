// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Folder is the canonical absolute path of a checked project root.
// It owns one daemon, one lock, one diagnostic set and one status/log file pair.
type Folder string

// NewFolder cleans and absolutizes a path into a Folder identifier.
func NewFolder(path string) (Folder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve folder %q: %w", path, err)
	}
	return Folder(filepath.Clean(abs)), nil
}

// Path returns the folder as a filesystem path.
func (f Folder) Path() string {
	return string(f)
}

// Name returns the last path element, for display.
func (f Folder) Name() string {
	return filepath.Base(string(f))
}

// Contains reports whether path lies inside the folder.
func (f Folder) Contains(path string) bool {
	rel, err := filepath.Rel(string(f), path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// DaemonCommand is a dmypy subcommand.
type DaemonCommand string

const (
	CommandStart   DaemonCommand = "start"
	CommandRestart DaemonCommand = "restart"
	CommandRun     DaemonCommand = "run"
	CommandStop    DaemonCommand = "stop"
	CommandStatus  DaemonCommand = "status"
)

// SupportsLogFile reports whether dmypy accepts --log-file for the command.
func (c DaemonCommand) SupportsLogFile() bool {
	switch c {
	case CommandStart, CommandRestart, CommandRun:
		return true
	default:
		return false
	}
}

// DaemonState is the controller's view of a folder's daemon.
// There is no Starting state: run starts the daemon implicitly.
type DaemonState string

const (
	StateStopped  DaemonState = "stopped"
	StateRunning  DaemonState = "running"
	StateStopping DaemonState = "stopping"
)

// Settings is the effective per-folder configuration.
type Settings struct {
	DmypyExecutable           string   // Command name or path; "dmypy" by default
	RunUsingActiveInterpreter bool     // Run as `<python> -m mypy.dmypy`
	PythonPath                string   // Explicit interpreter, empty for discovery
	Targets                   []string // Paths passed to `dmypy run`
	ConfigFile                string   // Optional mypy config file
}

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityInfo
)

// String returns the severity label.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "info"
}

// Diagnostic is one located, severity-tagged message.
// Line and Column are 0-based.
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Severity Severity
	Kind     string // Severity word as printed by mypy ("error", "note", ...)
	Message  string
}

// CheckRequest is one scheduled check. Seq is monotonically increasing
// and only used to correlate log lines.
type CheckRequest struct {
	Folder      Folder
	Seq         int64
	RequestedAt time.Time
}

// RunOutcome is the classified result of one dmypy invocation.
type RunOutcome struct {
	Success bool
	Stdout  string
	Kind        FailureKind // Set for failures and for benign recoveries
	Warning     string      // User-facing message, empty on plain success
	ShowDetails bool        // The full output is in the log
}

// Err returns the outcome as an error, or nil on success.
func (o RunOutcome) Err(folder Folder) error {
	if o.Success {
		return nil
	}
	return &CheckError{Kind: o.Kind, Folder: folder, Message: o.Warning, ShowDetails: o.ShowDetails}
}

// DaemonStatus describes what the status file says about a daemon.
type DaemonStatus struct {
	Folder     Folder
	State      DaemonState
	StatusFile string
	LogFile    string
	PID        int
	Alive      bool
}

// FailureKind classifies daemon invocation failures.
type FailureKind string

const (
	KindNone                 FailureKind = ""
	KindExecutableUnresolved FailureKind = "executable_unresolved"
	KindInterpreterFailure   FailureKind = "interpreter_failure"
	KindDaemonCrash          FailureKind = "daemon_crash"
	KindNoCheckableFiles     FailureKind = "no_checkable_files"
	KindDegenerateFatalExit  FailureKind = "degenerate_fatal_exit"
	KindStopRace             FailureKind = "stop_race"
	KindGenericRunFailure    FailureKind = "generic_run_failure"
)

var (
	ErrExecutableUnresolved = errors.New("daemon executable unresolved")
	ErrInterpreterFailure   = errors.New("active interpreter failed to run daemon")
	ErrDaemonCrash          = errors.New("daemon crashed")
	ErrStopRace             = errors.New("daemon stop failed")
	ErrRunFailure           = errors.New("daemon run failed")
)

var kindSentinels = map[FailureKind]error{
	KindExecutableUnresolved: ErrExecutableUnresolved,
	KindInterpreterFailure:   ErrInterpreterFailure,
	KindDaemonCrash:          ErrDaemonCrash,
	KindStopRace:             ErrStopRace,
	KindGenericRunFailure:    ErrRunFailure,
}

// CheckError is a per-folder, non-fatal failure.
type CheckError struct {
	Kind        FailureKind
	Folder      Folder
	Message     string
	ShowDetails bool // The full output is in the log
}

func (e *CheckError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Folder, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Folder, e.Message)
}

// Unwrap lets errors.Is match the kind sentinels.
func (e *CheckError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// Warning is an advisory, non-modal message for the user.
type Warning struct {
	Folder      Folder
	Seq         int64
	Kind        FailureKind
	Message     string
	ShowDetails bool // Offer to open the full logged output
}

// ChangeKind identifies what happened to a file.
type ChangeKind string

const (
	ChangeSaved   ChangeKind = "saved"
	ChangeCreated ChangeKind = "created"
	ChangeDeleted ChangeKind = "deleted"
	ChangeRenamed ChangeKind = "renamed"
)

// ChangeEvent is a file event delivered by a ChangeNotifier.
type ChangeEvent struct {
	Kind ChangeKind
	Path string
}
