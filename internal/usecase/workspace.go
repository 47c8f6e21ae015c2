package usecase

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/config"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// Workspace reacts to folder, file and settings events.
type Workspace struct {
	registry   *Registry
	scheduler  *Scheduler
	controller *Controller
	settings   *SettingsHolder
	fs         domain.FileSystemManager
	logger     *zap.Logger
}

// NewWorkspace wires the workspace reactions.
func NewWorkspace(
	registry *Registry,
	scheduler *Scheduler,
	controller *Controller,
	settings *SettingsHolder,
	fs domain.FileSystemManager,
	logger *zap.Logger,
) *Workspace {
	return &Workspace{
		registry:   registry,
		scheduler:  scheduler,
		controller: controller,
		settings:   settings,
		fs:         fs,
		logger:     logger,
	}
}

// Folders returns the open folders.
func (w *Workspace) Folders() []domain.Folder {
	return w.registry.Folders()
}

// AddFolders opens folders and checks each of them once.
func (w *Workspace) AddFolders(ctx context.Context, folders []domain.Folder) error {
	w.logger.Info("folders added", zap.Strings("folders", folderNames(folders)))
	for _, f := range folders {
		w.registry.Ensure(f)
	}
	return w.checkAll(ctx, folders)
}

// RemoveFolders stops the folders' daemons and forgets their state.
func (w *Workspace) RemoveFolders(ctx context.Context, folders []domain.Folder) error {
	w.logger.Info("folders removed", zap.Strings("folders", folderNames(folders)))
	outcomes := ForEach(ctx, folders, func(ctx context.Context, f domain.Folder) error {
		err := w.scheduler.Exclusive(ctx, f, func(ctx context.Context) error {
			err := w.controller.Stop(ctx, f, w.settings.FolderSettings(f))
			// Forgotten before the slot is released so checks queued
			// behind the stop find the folder closed.
			w.forget(f)
			return err
		})
		w.forget(f)
		return err
	})
	return Join(outcomes)
}

// FilesChanged checks the folders containing Python sources or mypy
// config files among paths. created marks paths that were just created.
func (w *Workspace) FilesChanged(ctx context.Context, paths []string, created bool) error {
	var affected []domain.Folder
	for _, p := range paths {
		folder, ok := w.registry.FolderFor(p)
		if !ok || slices.Contains(affected, folder) {
			continue
		}
		if w.triggersCheck(folder, p, created) {
			affected = append(affected, folder)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	w.logger.Info("files changed in folders", zap.Strings("folders", folderNames(affected)))
	return w.checkAll(ctx, affected)
}

// DocumentSaved checks the folder of a saved file if it is relevant.
func (w *Workspace) DocumentSaved(ctx context.Context, path string) error {
	folder, ok := w.registry.FolderFor(path)
	if !ok || !w.triggersCheck(folder, path, false) {
		return nil
	}
	w.logger.Info("document saved", zap.String("path", path))
	return w.scheduler.Check(ctx, folder).Err
}

// ConfigurationChanged installs new settings and rechecks every folder
// whose effective settings differ.
func (w *Workspace) ConfigurationChanged(ctx context.Context, src SettingsSource) error {
	folders := w.registry.Folders()
	before := make(map[domain.Folder]domain.Settings, len(folders))
	for _, f := range folders {
		before[f] = w.settings.FolderSettings(f)
	}

	w.settings.Swap(src)

	var affected []domain.Folder
	for _, f := range folders {
		if !settingsEqual(before[f], w.settings.FolderSettings(f)) {
			affected = append(affected, f)
		}
	}
	w.logger.Info("settings changed", zap.Strings("folders", folderNames(affected)))
	if len(affected) == 0 {
		return nil
	}
	return w.checkAll(ctx, affected)
}

// InterpreterChanged rechecks the folder containing path, or every
// folder when path is empty.
func (w *Workspace) InterpreterChanged(ctx context.Context, path string) error {
	w.logger.Info("active interpreter changed", zap.String("resource", path))
	if path == "" {
		return w.checkAll(ctx, w.registry.Folders())
	}
	folder, ok := w.registry.FolderFor(path)
	if !ok {
		return nil
	}
	return w.scheduler.Check(ctx, folder).Err
}

// Shutdown stops accepting checks and stops every daemon concurrently.
// Failures are logged, not returned. Cancelling ctx does not abort the
// stops; a signal that triggers teardown must not also break it.
func (w *Workspace) Shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	w.scheduler.Deactivate()
	w.logger.Info("shutting down daemons")

	folders := w.registry.Folders()
	outcomes := ForEach(ctx, folders, func(ctx context.Context, f domain.Folder) error {
		return w.stop(ctx, f)
	})
	for _, o := range outcomes {
		if o.Err != nil {
			w.logger.Warn("failed to stop daemon", zap.String("folder", o.Item.Path()), zap.Error(o.Err))
		}
	}
	w.logger.Info("daemons stopped", zap.Int("folders", len(folders)))
}

// stop waits for the folder's queued checks so none of them can start
// the daemon again behind the stop.
func (w *Workspace) stop(ctx context.Context, folder domain.Folder) error {
	return w.scheduler.Exclusive(ctx, folder, func(ctx context.Context) error {
		return w.controller.Stop(ctx, folder, w.settings.FolderSettings(folder))
	})
}

func (w *Workspace) forget(folder domain.Folder) {
	if state, ok := w.registry.Remove(folder); ok {
		state.Diagnostics.Clear()
	}
}

func (w *Workspace) checkAll(ctx context.Context, folders []domain.Folder) error {
	outcomes := ForEach(ctx, folders, func(ctx context.Context, f domain.Folder) error {
		return w.scheduler.Check(ctx, f).Err
	})
	return Join(outcomes)
}

func (w *Workspace) triggersCheck(folder domain.Folder, path string, created bool) bool {
	if isPythonSource(path) {
		return true
	}
	if !config.IsConfigFile(folder, w.settings.FolderSettings(folder), path) {
		return false
	}
	// A config file that was just created empty would make mypy fail.
	if created {
		if size, err := w.fs.Size(path); err == nil && size == 0 {
			return false
		}
	}
	return true
}

func isPythonSource(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".pyi")
}

func settingsEqual(a, b domain.Settings) bool {
	return a.DmypyExecutable == b.DmypyExecutable &&
		a.RunUsingActiveInterpreter == b.RunUsingActiveInterpreter &&
		a.PythonPath == b.PythonPath &&
		a.ConfigFile == b.ConfigFile &&
		slices.Equal(a.Targets, b.Targets)
}

func folderNames(folders []domain.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name()
	}
	return out
}
