package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/config"
	"github.com/eliteGoblin/focusd/tc_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/tc_mon/internal/infra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder...]",
	Short: "Supervise dmypy daemons and re-check on file changes",
	Long: `Opens every folder, checks it once, then re-checks a folder whenever a
Python source or mypy configuration file inside it changes.

Editing the tcmon config file (or sending SIGHUP) reloads it: removed
folders have their daemon stopped, added folders are checked, and folders
whose settings changed are re-checked.

On SIGINT or SIGTERM every daemon is stopped before tcmon exits.`,
	RunE: runWatch,
}

var (
	watchBackground bool
	watchForeground bool
)

func init() {
	watchCmd.Flags().BoolVarP(&watchBackground, "background", "b", false, "Detach and keep running in the background")
	watchCmd.Flags().BoolVar(&watchForeground, "foreground", false, "")
	_ = watchCmd.Flags().MarkHidden("foreground")
}

func runWatch(cmd *cobra.Command, args []string) error {
	detached := watchBackground && watchForeground
	if watchBackground && !watchForeground {
		return startWatchInBackground()
	}

	a, err := newApp(args, detached)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	logger := a.logger.With(zap.String("session", uuid.NewString()))

	notifier, err := infra.NewFSNotifier(logger)
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer notifier.Close()

	supervisorConfig := daemon.DefaultSupervisorConfig()
	supervisorConfig.Debounce = a.cfg.Debounce()
	supervisorConfig.MonitorInterval = a.cfg.MonitorInterval()
	if a.configExists {
		supervisorConfig.ConfigPath = a.configPath
	}

	monitor := daemon.NewMonitor(a.storage, a.processes, a.fs, logger)
	reload := func() (*config.Config, error) {
		cfg, _, _, err := loadConfig(args)
		return cfg, err
	}
	supervisor := daemon.NewSupervisor(supervisorConfig, a.workspace, notifier, monitor, reload, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("tcmon watch started",
		zap.String("version", Version),
		zap.Int("pid", os.Getpid()),
		zap.String("storage", a.storage.Root()),
		zap.String("config", supervisorConfig.ConfigPath))

	return supervisor.Run(ctx, a.cfg.FolderPaths())
}

func startWatchInBackground() error {
	cfg, _, _, err := loadConfig(nil)
	if err != nil {
		return err
	}
	mode := infra.DetectExecMode().WithStorageDir(cfg.Daemon.StorageDir)
	if err := os.MkdirAll(mode.StorageDir, 0o700); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	pid, err := daemon.StartBackground(os.Args[1:], mode.LogPath)
	if err != nil {
		return fmt.Errorf("failed to start background supervisor: %w", err)
	}

	fmt.Println("tcmon watch started in the background")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Log: %s\n", mode.LogPath)
	fmt.Println("Stop it with: kill", pid)
	return nil
}
