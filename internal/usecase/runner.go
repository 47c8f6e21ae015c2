// Package usecase contains application business logic.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

const (
	crashMarker         = "Daemon crashed!"
	noSourceFilesMarker = "There are no .py[i] files in directory"

	// maxErrorLineLen bounds the stderr excerpt shown to the user.
	maxErrorLineLen = 300

	// fatalExitCode is what mypy returns for fatal errors such as syntax
	// errors. The daemon sometimes reports them with 1 instead.
	fatalExitCode = 2
)

// RunRequest describes one dmypy invocation.
type RunRequest struct {
	Folder      domain.Folder
	Settings    domain.Settings
	Interpreter string // Active interpreter, may be empty
	Command     domain.DaemonCommand
	Args        []string // Forwarded after "--"

	// AcceptedExitCodes are treated as success in addition to 0.
	AcceptedExitCodes []int

	// WarnIfFailed sends failures to the sink, not only to the log.
	WarnIfFailed bool

	Seq int64 // Check sequence number, 0 outside checks
}

// Runner invokes dmypy and classifies the result.
type Runner struct {
	resolver domain.ExecutableResolver
	executor domain.CommandExecutor
	storage  domain.DaemonStorage
	sink     domain.DiagnosticSink
	logger   *zap.Logger
}

// NewRunner creates a process runner. sink may be nil.
func NewRunner(
	resolver domain.ExecutableResolver,
	executor domain.CommandExecutor,
	storage domain.DaemonStorage,
	sink domain.DiagnosticSink,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		resolver: resolver,
		executor: executor,
		storage:  storage,
		sink:     sink,
		logger:   logger,
	}
}

// Execute runs the request to completion. It never returns an error;
// failures are reported through the outcome and the sink.
func (r *Runner) Execute(ctx context.Context, req RunRequest) domain.RunOutcome {
	log := r.logger.With(
		zap.String("folder", req.Folder.Path()),
		zap.String("command", string(req.Command)))
	if req.Seq > 0 {
		log = log.With(zap.Int64("check", req.Seq))
	}

	exe, err := r.resolver.Resolve(req.Folder, req.Settings, req.Interpreter)
	if err != nil {
		return r.fail(log, req, kindOf(err, domain.KindExecutableUnresolved), messageOf(err), false)
	}

	if err := r.storage.Ensure(); err != nil {
		return r.fail(log, req, domain.KindGenericRunFailure,
			fmt.Sprintf("Error running mypy in %s: %v", req.Folder.Path(), err), false)
	}

	args := r.buildArgs(exe, req)
	log.Info("running dmypy", zap.String("cmd", shellquote.Join(append([]string{exe.Path}, args...)...)))

	res, err := r.executor.Run(ctx, req.Folder.Path(), exe.Path, args)
	if err != nil {
		return r.fail(log, req, domain.KindGenericRunFailure,
			fmt.Sprintf("Error running mypy in %s: %v", req.Folder.Path(), err), false)
	}

	return r.classify(log, req, exe, res)
}

// buildArgs assembles
// [leading...] --status-file S <command> [--log-file L] [-- args...].
func (r *Runner) buildArgs(exe domain.Executable, req RunRequest) []string {
	args := append([]string(nil), exe.LeadingArgs...)
	args = append(args, "--status-file", r.storage.StatusFile(req.Folder), string(req.Command))
	if req.Command.SupportsLogFile() {
		args = append(args, "--log-file", r.storage.LogFile(req.Folder))
	}
	if len(req.Args) > 0 {
		args = append(args, "--")
		args = append(args, req.Args...)
	}
	return args
}

func (r *Runner) classify(log *zap.Logger, req RunRequest, exe domain.Executable, res domain.ExecResult) domain.RunOutcome {
	accepted := res.ExitCode == 0 || slices.Contains(req.AcceptedExitCodes, res.ExitCode)

	if accepted {
		if res.ExitCode == 1 && res.Stderr != "" {
			// Usually `python -m mypy.dmypy` failing to import mypy.
			kind := domain.KindGenericRunFailure
			hint := ""
			if exe.InterpreterMode {
				kind = domain.KindInterpreterFailure
				hint = fmt.Sprintf("Probably mypy is not installed in the active interpreter (%s). "+
					"Either install mypy in this interpreter or switch off the "+
					"run_using_active_interpreter setting. ", exe.Path)
			}
			logOutput(log, res)
			return r.fail(log, req, kind,
				fmt.Sprintf("Error running mypy in %s. %sSee the log for details.", req.Folder.Path(), hint), true)
		}
		return domain.RunOutcome{Success: true, Stdout: res.Stdout}
	}

	if res.Stdout != "" && res.ExitCode == fatalExitCode && res.Stderr == "" {
		log.Debug("fatal exit code with output, treating as success", zap.Int("exit_code", res.ExitCode))
		return domain.RunOutcome{Success: true, Stdout: res.Stdout, Kind: domain.KindDegenerateFatalExit}
	}

	logOutput(log, res)

	if strings.Contains(res.Stderr, crashMarker) {
		return r.fail(log, req, domain.KindDaemonCrash, fmt.Sprintf(
			"Error running mypy in %s: the mypy daemon crashed. This is probably a bug in mypy itself, "+
				"see the log for details. The daemon will be restarted automatically.", req.Folder.Path()), true)
	}
	if strings.Contains(res.Stderr, noSourceFilesMarker) {
		log.Info("no python files to check")
		return domain.RunOutcome{Success: true, Kind: domain.KindNoCheckableFiles}
	}

	return r.fail(log, req, domain.KindGenericRunFailure, fmt.Sprintf(
		"Error running mypy in %s: mypy failed with %s. See the log for details.",
		req.Folder.Path(), describeFailure(res)), true)
}

func (r *Runner) fail(log *zap.Logger, req RunRequest, kind domain.FailureKind, msg string, details bool) domain.RunOutcome {
	log.Warn("dmypy failed", zap.String("kind", string(kind)), zap.String("message", msg))
	if req.WarnIfFailed && r.sink != nil {
		r.sink.Warn(domain.Warning{
			Folder:      req.Folder,
			Seq:         req.Seq,
			Kind:        kind,
			Message:     msg,
			ShowDetails: details,
		})
	}
	return domain.RunOutcome{Kind: kind, Warning: msg, ShowDetails: details}
}

// describeFailure returns `error: "<first stderr line>"` or `exit code N`.
func describeFailure(res domain.ExecResult) string {
	if res.Stderr == "" {
		return fmt.Sprintf("exit code %d", res.ExitCode)
	}
	first, _, _ := strings.Cut(res.Stderr, "\n")
	if runes := []rune(first); len(runes) > maxErrorLineLen {
		first = string(runes[:maxErrorLineLen]) + " [...]"
	}
	return fmt.Sprintf(`error: "%s"`, first)
}

func logOutput(log *zap.Logger, res domain.ExecResult) {
	log.Info("dmypy output",
		zap.Int("exit_code", res.ExitCode),
		zap.String("stdout", res.Stdout),
		zap.String("stderr", res.Stderr))
}

func kindOf(err error, fallback domain.FailureKind) domain.FailureKind {
	var ce *domain.CheckError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return fallback
}

func messageOf(err error) string {
	var ce *domain.CheckError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}
