package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// runAcceptedExitCodes: dmypy run exits 1 when it reports issues.
var runAcceptedExitCodes = []int{1}

// ControllerConfig holds lifecycle settings.
type ControllerConfig struct {
	StopRetryDelay time.Duration // Wait between stop attempts
	StopAttempts   int           // Total stop attempts, including the first
}

// DefaultControllerConfig returns the default lifecycle settings.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		StopRetryDelay: time.Second,
		StopAttempts:   2,
	}
}

// Controller drives the per-folder daemon lifecycle.
type Controller struct {
	runner      *Runner
	interpreter domain.InterpreterResolver
	storage     domain.DaemonStorage
	processes   domain.ProcessManager
	registry    *Registry
	config      ControllerConfig
	sleep       func(context.Context, time.Duration) error
	logger      *zap.Logger
}

// NewController creates a lifecycle controller.
func NewController(
	runner *Runner,
	interpreter domain.InterpreterResolver,
	storage domain.DaemonStorage,
	processes domain.ProcessManager,
	registry *Registry,
	config ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if config.StopAttempts < 1 {
		config.StopAttempts = 1
	}
	return &Controller{
		runner:      runner,
		interpreter: interpreter,
		storage:     storage,
		processes:   processes,
		registry:    registry,
		config:      config,
		sleep:       sleepContext,
		logger:      logger,
	}
}

// Run checks the folder with `dmypy run`, starting the daemon if needed.
// Warnings go to the sink.
func (c *Controller) Run(ctx context.Context, folder domain.Folder, settings domain.Settings, args []string, seq int64) domain.RunOutcome {
	interpreter := c.activeInterpreter(ctx, folder, settings)
	if interpreter != "" {
		args = append(append([]string(nil), args...), "--python-executable", interpreter)
	}

	outcome := c.runner.Execute(ctx, RunRequest{
		Folder:            folder,
		Settings:          settings,
		Interpreter:       interpreter,
		Command:           domain.CommandRun,
		Args:              args,
		AcceptedExitCodes: runAcceptedExitCodes,
		WarnIfFailed:      true,
		Seq:               seq,
	})

	switch {
	case outcome.Success:
		c.registry.Ensure(folder).setDaemonState(domain.StateRunning)
	case outcome.Kind == domain.KindDaemonCrash:
		c.registry.Ensure(folder).setDaemonState(domain.StateStopped)
	}
	return outcome
}

// Start starts the folder's daemon without checking.
func (c *Controller) Start(ctx context.Context, folder domain.Folder, settings domain.Settings) error {
	return c.startLike(ctx, folder, settings, domain.CommandStart)
}

// Restart restarts the folder's daemon, picking up new settings.
func (c *Controller) Restart(ctx context.Context, folder domain.Folder, settings domain.Settings) error {
	return c.startLike(ctx, folder, settings, domain.CommandRestart)
}

func (c *Controller) startLike(ctx context.Context, folder domain.Folder, settings domain.Settings, cmd domain.DaemonCommand) error {
	outcome := c.runner.Execute(ctx, RunRequest{
		Folder:       folder,
		Settings:     settings,
		Interpreter:  c.activeInterpreter(ctx, folder, settings),
		Command:      cmd,
		WarnIfFailed: true,
	})
	if outcome.Success {
		c.registry.Ensure(folder).setDaemonState(domain.StateRunning)
	}
	return outcome.Err(folder)
}

// Stop stops the folder's daemon. A failed attempt is retried after
// StopRetryDelay, up to StopAttempts in total; then Stop gives up and
// the daemon may be left running.
func (c *Controller) Stop(ctx context.Context, folder domain.Folder, settings domain.Settings) error {
	state := c.registry.Ensure(folder)
	prev := state.setDaemonState(domain.StateStopping)

	log := c.logger.With(zap.String("folder", folder.Path()))
	log.Info("stopping daemon")

	interpreter := c.activeInterpreter(ctx, folder, settings)

	var last domain.RunOutcome
	for attempt := 1; attempt <= c.config.StopAttempts; attempt++ {
		if attempt > 1 {
			// The daemon may have been started so recently that its
			// status file does not exist yet.
			log.Info("daemon stop failed, retrying", zap.Duration("delay", c.config.StopRetryDelay))
			if err := c.sleep(ctx, c.config.StopRetryDelay); err != nil {
				state.setDaemonState(prev)
				return fmt.Errorf("stop %s: %w", folder.Path(), err)
			}
		}

		last = c.runner.Execute(ctx, RunRequest{
			Folder:      folder,
			Settings:    settings,
			Interpreter: interpreter,
			Command:     domain.CommandStop,
		})
		if last.Success {
			state.setDaemonState(domain.StateStopped)
			log.Info("stopped daemon", zap.Int("attempts", attempt))
			return nil
		}
	}

	log.Warn("daemon stop failed again, giving up", zap.Int("attempts", c.config.StopAttempts))
	state.setDaemonState(prev)
	return &domain.CheckError{Kind: domain.KindStopRace, Folder: folder, Message: last.Warning, ShowDetails: last.ShowDetails}
}

// Status reports what the status file says about the folder's daemon.
func (c *Controller) Status(folder domain.Folder) (domain.DaemonStatus, error) {
	status := domain.DaemonStatus{
		Folder:     folder,
		State:      domain.StateStopped,
		StatusFile: c.storage.StatusFile(folder),
		LogFile:    c.storage.LogFile(folder),
	}

	entry, err := c.storage.ReadStatus(folder)
	if err != nil {
		return status, err
	}
	if entry != nil {
		status.PID = entry.PID
		status.Alive = entry.PID > 0 && c.processes.IsRunning(entry.PID)
		if status.Alive {
			status.State = domain.StateRunning
		}
	}

	if s, ok := c.registry.Get(folder); ok && s.DaemonState() == domain.StateStopping {
		status.State = domain.StateStopping
	}
	return status, nil
}

// State returns the controller's view of the folder's daemon.
func (c *Controller) State(folder domain.Folder) domain.DaemonState {
	if s, ok := c.registry.Get(folder); ok {
		return s.DaemonState()
	}
	return domain.StateStopped
}

func (c *Controller) activeInterpreter(ctx context.Context, folder domain.Folder, settings domain.Settings) string {
	if c.interpreter == nil {
		return ""
	}
	path, err := c.interpreter.PythonPath(ctx, folder, settings)
	if err != nil {
		c.logger.Warn("failed to resolve active interpreter",
			zap.String("folder", folder.Path()),
			zap.Error(err))
		return ""
	}
	return path
}
