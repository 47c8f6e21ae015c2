package daemon

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/infra"
)

// SweepResult summarizes one monitor pass.
type SweepResult struct {
	Live    int
	Removed int
	Failed  int
}

// Monitor removes status files left behind by daemons that are gone.
// A daemon killed outside tcmon leaves its status file, and dmypy then
// refuses to start a fresh one for the folder.
type Monitor struct {
	storage        domain.DaemonStorage
	processManager domain.ProcessManager
	fs             domain.FileSystemManager
	logger         *zap.Logger

	readStatus func(path string) (*domain.StatusFileEntry, error)
}

// NewMonitor creates a status file monitor.
func NewMonitor(
	storage domain.DaemonStorage,
	pm domain.ProcessManager,
	fs domain.FileSystemManager,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		storage:        storage,
		processManager: pm,
		fs:             fs,
		logger:         logger,
		readStatus:     infra.ReadStatusFile,
	}
}

// Sweep checks every status file once.
func (m *Monitor) Sweep() SweepResult {
	var result SweepResult

	paths, err := m.storage.StatusFiles()
	if err != nil {
		m.logger.Warn("failed to list status files", zap.Error(err))
		return result
	}

	for _, path := range paths {
		entry, err := m.readStatus(path)
		if err != nil {
			// dmypy may be mid-write; try again next pass.
			m.logger.Debug("unreadable status file", zap.String("path", path), zap.Error(err))
			result.Failed++
			continue
		}
		if entry == nil {
			continue
		}

		if entry.PID > 0 && m.processManager.IsRunning(entry.PID) {
			name, _ := m.processManager.Name(entry.PID)
			m.logger.Debug("daemon alive",
				zap.String("path", path),
				zap.Int("pid", entry.PID),
				zap.String("process", name))
			result.Live++
			continue
		}

		if err := m.fs.Delete(path); err != nil {
			m.logger.Warn("failed to remove stale status file", zap.String("path", path), zap.Error(err))
			result.Failed++
			continue
		}
		m.logger.Info("removed stale status file", zap.String("path", path), zap.Int("pid", entry.PID))
		result.Removed++
	}

	return result
}
