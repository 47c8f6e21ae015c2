package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// mockResolver implements domain.ExecutableResolver for testing
type mockResolver struct {
	exe domain.Executable
	err error
}

func (m *mockResolver) Resolve(folder domain.Folder, settings domain.Settings, interpreter string) (domain.Executable, error) {
	if m.err != nil {
		return domain.Executable{}, m.err
	}
	if settings.RunUsingActiveInterpreter {
		return domain.Executable{Path: interpreter, LeadingArgs: []string{"-m", "mypy.dmypy"}, InterpreterMode: true}, nil
	}
	if m.exe.Path == "" {
		return domain.Executable{Path: "/usr/bin/dmypy"}, nil
	}
	return m.exe, nil
}

type execCall struct {
	Dir  string
	Name string
	Args []string
}

// mockExecutor implements domain.CommandExecutor for testing.
// Results are consumed in order; the last one repeats.
type mockExecutor struct {
	mu      sync.Mutex
	results []domain.ExecResult
	err     error
	calls   []execCall
	hook    func(call execCall)
	ctxErrs []error

	running    atomic.Int32
	maxRunning atomic.Int32
}

func (m *mockExecutor) Run(ctx context.Context, dir, name string, args []string) (domain.ExecResult, error) {
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		peak := m.maxRunning.Load()
		if n <= peak || m.maxRunning.CompareAndSwap(peak, n) {
			break
		}
	}

	call := execCall{Dir: dir, Name: name, Args: append([]string(nil), args...)}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	var res domain.ExecResult
	if len(m.results) > 0 {
		res = m.results[0]
		if len(m.results) > 1 {
			m.results = m.results[1:]
		}
	}
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	m.mu.Lock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()
	if m.err != nil {
		return domain.ExecResult{ExitCode: -1}, m.err
	}
	return res, nil
}

func (m *mockExecutor) Calls() []execCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]execCall(nil), m.calls...)
}

// mockStorage implements domain.DaemonStorage for testing
type mockStorage struct {
	root      string
	ensureErr error
	status    map[domain.Folder]*domain.StatusFileEntry
}

func newMockStorage() *mockStorage {
	return &mockStorage{root: "/storage", status: make(map[domain.Folder]*domain.StatusFileEntry)}
}

func (m *mockStorage) Root() string {
	return m.root
}

func (m *mockStorage) Ensure() error {
	return m.ensureErr
}

func (m *mockStorage) StatusFile(folder domain.Folder) string {
	return filepath.Join(m.root, "dmypy-"+folder.Name()+".json")
}

func (m *mockStorage) LogFile(folder domain.Folder) string {
	return filepath.Join(m.root, "dmypy-"+folder.Name()+".log")
}

func (m *mockStorage) ReadStatus(folder domain.Folder) (*domain.StatusFileEntry, error) {
	return m.status[folder], nil
}

func (m *mockStorage) StatusFiles() ([]string, error) {
	return nil, nil
}

// recordingSink implements domain.DiagnosticSink for testing
type recordingSink struct {
	mu       sync.Mutex
	replaced map[domain.Folder]map[string][]domain.Diagnostic
	cleared  []domain.Folder
	warnings []domain.Warning
}

func newRecordingSink() *recordingSink {
	return &recordingSink{replaced: make(map[domain.Folder]map[string][]domain.Diagnostic)}
}

func (s *recordingSink) Replace(folder domain.Folder, byFile map[string][]domain.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced[folder] = byFile
}

func (s *recordingSink) Clear(folder domain.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, folder)
}

func (s *recordingSink) Warn(w domain.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

func (s *recordingSink) Warnings() []domain.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Warning(nil), s.warnings...)
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	running map[int]bool
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.running[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	return "python", nil
}

// mockInterpreter implements domain.InterpreterResolver for testing
type mockInterpreter struct {
	mu    sync.Mutex
	paths []string
	err   error
	calls int
}

func (m *mockInterpreter) PythonPath(ctx context.Context, folder domain.Folder, settings domain.Settings) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.paths) == 0 {
		return "", nil
	}
	p := m.paths[0]
	if len(m.paths) > 1 {
		m.paths = m.paths[1:]
	}
	return p, nil
}

func (m *mockInterpreter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// staticSettings implements SettingsSource for testing
type staticSettings struct {
	settings domain.Settings
	folders  map[domain.Folder]domain.Settings
}

func (s staticSettings) FolderSettings(folder domain.Folder) domain.Settings {
	if fs, ok := s.folders[folder]; ok {
		return fs
	}
	return s.settings
}

// mockFileSystem implements domain.FileSystemManager for testing
type mockFileSystem struct {
	sizes map[string]int64
}

func (m *mockFileSystem) Exists(path string) bool {
	_, ok := m.sizes[path]
	return ok
}

func (m *mockFileSystem) Size(path string) (int64, error) {
	return m.sizes[path], nil
}

func (m *mockFileSystem) Delete(path string) error {
	return nil
}

func (m *mockFileSystem) ExpandHome(path string) string {
	return path
}

// recordingSleeper replaces time-based waits in tests
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
