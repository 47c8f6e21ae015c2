package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/usecase"
)

// mockNotifier implements domain.ChangeNotifier for testing
type mockNotifier struct {
	mu        sync.Mutex
	events    chan domain.ChangeEvent
	watched   []domain.Folder
	unwatched []domain.Folder
	files     []string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{events: make(chan domain.ChangeEvent, 64)}
}

func (m *mockNotifier) Watch(folder domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched = append(m.watched, folder)
	return nil
}

func (m *mockNotifier) Unwatch(folder domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unwatched = append(m.unwatched, folder)
	return nil
}

func (m *mockNotifier) WatchFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, path)
	return nil
}

func (m *mockNotifier) Events() <-chan domain.ChangeEvent {
	return m.events
}

func (m *mockNotifier) Close() error {
	return nil
}

func (m *mockNotifier) Watched() []domain.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.watched)
}

func (m *mockNotifier) Unwatched() []domain.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.unwatched)
}

type execCall struct {
	Dir  string
	Args []string
}

// mockExecutor implements domain.CommandExecutor for testing.
// Every command succeeds.
type mockExecutor struct {
	mu    sync.Mutex
	calls []execCall
}

func (m *mockExecutor) Run(_ context.Context, dir, _ string, args []string) (domain.ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{Dir: dir, Args: slices.Clone(args)})
	return domain.ExecResult{}, nil
}

// count returns how many calls ran command in dir; an empty dir matches all.
func (m *mockExecutor) count(command, dir string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if (dir == "" || c.Dir == dir) && slices.Contains(c.Args, command) {
			n++
		}
	}
	return n
}

// mockResolver implements domain.ExecutableResolver for testing
type mockResolver struct{}

func (mockResolver) Resolve(domain.Folder, domain.Settings, string) (domain.Executable, error) {
	return domain.Executable{Path: "/usr/bin/dmypy"}, nil
}

// noInterpreter implements domain.InterpreterResolver for testing
type noInterpreter struct{}

func (noInterpreter) PythonPath(context.Context, domain.Folder, domain.Settings) (string, error) {
	return "", nil
}

// mockStorage implements domain.DaemonStorage for testing
type mockStorage struct {
	files   []string
	listErr error
}

func (m *mockStorage) Root() string {
	return "/storage"
}

func (m *mockStorage) Ensure() error {
	return nil
}

func (m *mockStorage) StatusFile(folder domain.Folder) string {
	return filepath.Join("/storage", "dmypy-"+folder.Name()+".json")
}

func (m *mockStorage) LogFile(folder domain.Folder) string {
	return filepath.Join("/storage", "dmypy-"+folder.Name()+".log")
}

func (m *mockStorage) ReadStatus(domain.Folder) (*domain.StatusFileEntry, error) {
	return nil, nil
}

func (m *mockStorage) StatusFiles() ([]string, error) {
	return m.files, m.listErr
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	running map[int]bool
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.running[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	if m.running[pid] {
		return "python", nil
	}
	return "", errors.New("no such process")
}

// mockFileSystem implements domain.FileSystemManager for testing
type mockFileSystem struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr map[string]error
}

func (m *mockFileSystem) Exists(string) bool {
	return true
}

func (m *mockFileSystem) Size(string) (int64, error) {
	return 1, nil
}

func (m *mockFileSystem) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[path]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockFileSystem) ExpandHome(path string) string {
	return path
}

// staticSettings implements usecase.SettingsSource for testing
type staticSettings struct{}

func (staticSettings) FolderSettings(domain.Folder) domain.Settings {
	return domain.Settings{}
}

// newTestWorkspace wires a workspace over the mock executor.
func newTestWorkspace() (*usecase.Workspace, *mockExecutor) {
	exec := &mockExecutor{}
	storage := &mockStorage{}
	registry := usecase.NewRegistry(nil)
	runner := usecase.NewRunner(mockResolver{}, exec, storage, nil, zap.NewNop())
	controller := usecase.NewController(runner, noInterpreter{}, storage,
		&mockProcessManager{}, registry, usecase.DefaultControllerConfig(), zap.NewNop())
	holder := usecase.NewSettingsHolder(staticSettings{})
	scheduler := usecase.NewScheduler(controller, registry, holder, zap.NewNop())
	workspace := usecase.NewWorkspace(registry, scheduler, controller, holder, &mockFileSystem{}, zap.NewNop())
	return workspace, exec
}
