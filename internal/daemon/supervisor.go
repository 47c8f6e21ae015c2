// Package daemon implements the long-running supervisor and its helpers.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/config"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/usecase"
)

// SupervisorConfig holds supervisor loop configuration.
type SupervisorConfig struct {
	Debounce        time.Duration // Window used to coalesce file events
	MonitorInterval time.Duration // How often stale status files are swept
	ConfigPath      string        // Config file to watch, empty to disable reload on change
}

// DefaultSupervisorConfig returns default supervisor configuration.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Debounce:        300 * time.Millisecond,
		MonitorInterval: 60 * time.Second,
	}
}

// Reloader re-reads the configuration.
type Reloader func() (*config.Config, error)

// fileWatcher is implemented by notifiers that can watch single files.
type fileWatcher interface {
	WatchFile(path string) error
}

// Supervisor runs checks in response to file changes until its context
// ends, then stops every daemon.
type Supervisor struct {
	config    SupervisorConfig
	workspace *usecase.Workspace
	notifier  domain.ChangeNotifier
	monitor   *Monitor
	reload    Reloader
	logger    *zap.Logger

	hup chan os.Signal
	wg  sync.WaitGroup
}

// NewSupervisor creates a supervisor. monitor and reload may be nil.
func NewSupervisor(
	config SupervisorConfig,
	workspace *usecase.Workspace,
	notifier domain.ChangeNotifier,
	monitor *Monitor,
	reload Reloader,
	logger *zap.Logger,
) *Supervisor {
	if config.Debounce <= 0 {
		config.Debounce = DefaultSupervisorConfig().Debounce
	}
	return &Supervisor{
		config:    config,
		workspace: workspace,
		notifier:  notifier,
		monitor:   monitor,
		reload:    reload,
		logger:    logger,
		hup:       make(chan os.Signal, 1),
	}
}

// Run opens folders and blocks until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context, folders []domain.Folder) error {
	s.logger.Info("supervisor started", zap.Int("folders", len(folders)))

	for _, f := range folders {
		s.watch(f)
	}
	if s.config.ConfigPath != "" {
		if fw, ok := s.notifier.(fileWatcher); ok {
			if err := fw.WatchFile(s.config.ConfigPath); err != nil {
				s.logger.Debug("config file not watched", zap.String("path", s.config.ConfigPath), zap.Error(err))
			}
		}
	}

	signal.Notify(s.hup, syscall.SIGHUP)
	defer signal.Stop(s.hup)

	s.spawn(func() {
		if err := s.workspace.AddFolders(ctx, folders); err != nil {
			s.logger.Warn("initial check failed", zap.Error(err))
		}
	})
	if s.monitor != nil {
		s.monitor.Sweep()
	}

	var monitorTick <-chan time.Time
	if s.monitor != nil && s.config.MonitorInterval > 0 {
		ticker := time.NewTicker(s.config.MonitorInterval)
		defer ticker.Stop()
		monitorTick = ticker.C
	}

	pending := newBatch(s.config.ConfigPath)
	debounce := time.NewTimer(s.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor stopping")
			s.teardown(ctx)
			return nil

		case ev, ok := <-s.notifier.Events():
			if !ok {
				s.logger.Warn("change notifier closed")
				s.teardown(ctx)
				return nil
			}
			pending.add(ev)
			debounce.Reset(s.config.Debounce)

		case <-debounce.C:
			b := pending
			pending = newBatch(s.config.ConfigPath)
			s.spawn(func() { s.flush(ctx, b) })

		case <-s.hup:
			s.logger.Info("SIGHUP received, reloading configuration")
			s.spawn(func() { s.reloadConfig(ctx) })

		case <-monitorTick:
			s.monitor.Sweep()
		}
	}
}

func (s *Supervisor) teardown(ctx context.Context) {
	s.workspace.Shutdown(context.WithoutCancel(ctx))
	s.wg.Wait()
	s.logger.Info("supervisor stopped")
}

func (s *Supervisor) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Supervisor) flush(ctx context.Context, b *batch) {
	if b.config {
		s.reloadConfig(ctx)
	}
	for _, p := range b.interpreters {
		if err := s.workspace.InterpreterChanged(ctx, p); err != nil {
			s.logger.Debug("check after interpreter change failed", zap.Error(err))
		}
	}
	if len(b.created) > 0 {
		if err := s.workspace.FilesChanged(ctx, b.created, true); err != nil {
			s.logger.Debug("check after create failed", zap.Error(err))
		}
	}
	if path, ok := b.singleSave(); ok {
		if err := s.workspace.DocumentSaved(ctx, path); err != nil {
			s.logger.Debug("check after save failed", zap.Error(err))
		}
		return
	}
	if len(b.changed) > 0 {
		if err := s.workspace.FilesChanged(ctx, b.changed, false); err != nil {
			s.logger.Debug("check after change failed", zap.Error(err))
		}
	}
}

func (s *Supervisor) reloadConfig(ctx context.Context) {
	if s.reload == nil {
		return
	}
	cfg, err := s.reload()
	if err != nil {
		s.logger.Warn("failed to reload configuration, keeping the previous one", zap.Error(err))
		return
	}

	current := s.workspace.Folders()
	wanted := cfg.FolderPaths()
	removed := difference(current, wanted)
	added := difference(wanted, current)

	if len(removed) > 0 {
		for _, f := range removed {
			if err := s.notifier.Unwatch(f); err != nil {
				s.logger.Debug("failed to unwatch folder", zap.String("folder", f.Path()), zap.Error(err))
			}
		}
		if err := s.workspace.RemoveFolders(ctx, removed); err != nil {
			s.logger.Warn("failed to stop removed folders", zap.Error(err))
		}
	}

	if err := s.workspace.ConfigurationChanged(ctx, cfg); err != nil {
		s.logger.Debug("check after settings change failed", zap.Error(err))
	}

	if len(added) > 0 {
		for _, f := range added {
			s.watch(f)
		}
		if err := s.workspace.AddFolders(ctx, added); err != nil {
			s.logger.Debug("check of added folders failed", zap.Error(err))
		}
	}
}

func (s *Supervisor) watch(f domain.Folder) {
	if err := s.notifier.Watch(f); err != nil {
		s.logger.Warn("failed to watch folder", zap.String("folder", f.Path()), zap.Error(err))
	}
}

// interpreterDirs are virtualenv directories; creating or removing one
// changes the folder's interpreter.
var interpreterDirs = map[string]bool{".venv": true, "venv": true}

// batch accumulates events between two debounce ticks.
type batch struct {
	configPath   string
	config       bool
	interpreters []string
	created      []string
	changed      []string
	kinds        map[string]domain.ChangeKind
}

func newBatch(configPath string) *batch {
	return &batch{configPath: configPath, kinds: make(map[string]domain.ChangeKind)}
}

// add records ev. Repeated paths keep their first kind.
func (b *batch) add(ev domain.ChangeEvent) {
	if isConfigEvent(b.configPath, ev.Path) {
		b.config = true
		return
	}
	if _, ok := b.kinds[ev.Path]; ok {
		return
	}
	b.kinds[ev.Path] = ev.Kind
	switch {
	case interpreterDirs[filepath.Base(ev.Path)] && ev.Kind != domain.ChangeSaved:
		b.interpreters = append(b.interpreters, ev.Path)
	case ev.Kind == domain.ChangeCreated:
		b.created = append(b.created, ev.Path)
	default:
		b.changed = append(b.changed, ev.Path)
	}
}

// singleSave returns the path when the batch is exactly one saved file,
// the usual shape of an editor save.
func (b *batch) singleSave() (string, bool) {
	if len(b.created) > 0 || len(b.changed) != 1 {
		return "", false
	}
	path := b.changed[0]
	return path, b.kinds[path] == domain.ChangeSaved
}

func difference(a, b []domain.Folder) []domain.Folder {
	in := make(map[domain.Folder]bool, len(b))
	for _, f := range b {
		in[f] = true
	}
	var out []domain.Folder
	for _, f := range a {
		if !in[f] {
			out = append(out, f)
		}
	}
	return out
}

// isConfigEvent reports whether path is the supervisor's config file.
func isConfigEvent(configPath, path string) bool {
	return configPath != "" && filepath.Clean(configPath) == filepath.Clean(path)
}
