package main

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/config"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/infra"
	"github.com/eliteGoblin/focusd/tc_mon/internal/usecase"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg          *config.Config
	configPath   string
	configExists bool
	folderArgs   []string

	mode       *infra.ExecModeConfig
	storage    *infra.FileStorage
	fs         domain.FileSystemManager
	processes  domain.ProcessManager
	sink       *infra.ConsoleSink
	registry   *usecase.Registry
	settings   *usecase.SettingsHolder
	controller *usecase.Controller
	scheduler  *usecase.Scheduler
	workspace  *usecase.Workspace
	logger     *zap.Logger
}

// loadConfig reads the config file and adds folders given as arguments.
// With no folder anywhere the current directory is supervised.
func loadConfig(folderArgs []string) (*config.Config, string, bool, error) {
	cfg, path, exists, err := config.Load(configPath)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.AddFolders(folderArgs...); err != nil {
		return nil, "", false, err
	}
	if len(cfg.Folders) == 0 {
		if err := cfg.AddFolders("."); err != nil {
			return nil, "", false, err
		}
	}
	return cfg, path, exists, nil
}

// newApp loads configuration and wires every component. background
// sends logs to the storage log file.
func newApp(folderArgs []string, background bool) (*app, error) {
	cfg, path, exists, err := loadConfig(folderArgs)
	if err != nil {
		return nil, err
	}

	mode := infra.DetectExecMode().WithStorageDir(cfg.Daemon.StorageDir)

	file := logFile
	if file == "" {
		file = cfg.Logging.File
	}
	if file == "" && background {
		file = mode.LogPath
	}
	if file != "" {
		if err := os.MkdirAll(mode.StorageDir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	logger := createLogger(cfg.Logging.Level, cfg.Logging.Format, file)

	logHint := "Run with --log-file or see " + mode.LogPath + " for details."
	if file != "" {
		logHint = "See " + file + " for details."
	}

	fs := infra.NewFileSystemManager()
	processes := infra.NewProcessManager()
	storage := infra.NewFileStorage(mode.StorageDir)
	sink := infra.NewConsoleSink(os.Stdout, noColor, logHint)

	registry := usecase.NewRegistry(sink)
	settings := usecase.NewSettingsHolder(cfg)
	runner := usecase.NewRunner(
		infra.NewExecutableResolver(fs),
		infra.NewCommandExecutor(),
		storage,
		sink,
		logger,
	)
	interpreter := usecase.NewWarmupInterpreter(
		infra.NewInterpreterResolver(fs),
		registry,
		usecase.DefaultWarmupDelay,
		logger,
	)
	controllerConfig := usecase.DefaultControllerConfig()
	controllerConfig.StopRetryDelay = cfg.StopRetryDelay()
	controller := usecase.NewController(runner, interpreter, storage, processes, registry, controllerConfig, logger)
	scheduler := usecase.NewScheduler(controller, registry, settings, logger)
	workspace := usecase.NewWorkspace(registry, scheduler, controller, settings, fs, logger)

	logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.Bool("exists", exists),
		zap.String("mode", mode.Mode.String()),
		zap.String("storage", mode.StorageDir),
		zap.Int("folders", len(cfg.Folders)))

	return &app{
		cfg:          cfg,
		configPath:   path,
		configExists: exists,
		folderArgs:   folderArgs,
		mode:         mode,
		storage:      storage,
		fs:           fs,
		processes:    processes,
		sink:         sink,
		registry:     registry,
		settings:     settings,
		controller:   controller,
		scheduler:    scheduler,
		workspace:    workspace,
		logger:       logger,
	}, nil
}

// folders returns the folders named on the command line, or every
// configured folder when none were named.
func (a *app) folders() ([]domain.Folder, error) {
	if len(a.folderArgs) == 0 {
		return a.cfg.FolderPaths(), nil
	}
	out := make([]domain.Folder, 0, len(a.folderArgs))
	for _, arg := range a.folderArgs {
		p, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Folder(p))
	}
	return out, nil
}

// lock takes the storage lock so only one tcmon drives the daemons.
func (a *app) lock() (*flock.Flock, error) {
	lock, ok, err := a.storage.AcquireLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another tcmon is using %s (is `tcmon watch` running?)", a.storage.Root())
	}
	return lock, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
