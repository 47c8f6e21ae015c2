package usecase

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/eliteGoblin/focusd/tc_mon/internal/diag"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// FolderState is everything the supervisor tracks for one open folder.
type FolderState struct {
	Folder      domain.Folder
	Diagnostics *diag.Store

	mu     sync.Mutex
	daemon domain.DaemonState

	interpreterReady atomic.Bool
}

// DaemonState returns the controller's view of the folder's daemon.
func (s *FolderState) DaemonState() domain.DaemonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daemon
}

func (s *FolderState) setDaemonState(state domain.DaemonState) domain.DaemonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.daemon
	s.daemon = state
	return prev
}

// markInterpreterReady records that interpreter warm-up is over.
// It returns true for the first caller only.
func (s *FolderState) markInterpreterReady() bool {
	return s.interpreterReady.CompareAndSwap(false, true)
}

// InterpreterReady reports whether warm-up is over for the folder.
func (s *FolderState) InterpreterReady() bool {
	return s.interpreterReady.Load()
}

// Registry holds the state of every open folder.
type Registry struct {
	sink domain.DiagnosticSink

	mu      sync.RWMutex
	folders map[domain.Folder]*FolderState
}

// NewRegistry creates an empty registry. Diagnostic stores created by it
// forward to sink, which may be nil.
func NewRegistry(sink domain.DiagnosticSink) *Registry {
	return &Registry{
		sink:    sink,
		folders: make(map[domain.Folder]*FolderState),
	}
}

// Ensure returns the folder's state, creating it if needed.
func (r *Registry) Ensure(folder domain.Folder) *FolderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.folders[folder]; ok {
		return s
	}
	s := &FolderState{
		Folder:      folder,
		Diagnostics: diag.NewStore(folder, r.sink),
		daemon:      domain.StateStopped,
	}
	r.folders[folder] = s
	return s
}

// Get returns the folder's state if it is registered.
func (r *Registry) Get(folder domain.Folder) (*FolderState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.folders[folder]
	return s, ok
}

// Remove drops the folder and returns its last state.
func (r *Registry) Remove(folder domain.Folder) (*FolderState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.folders[folder]
	delete(r.folders, folder)
	return s, ok
}

// Folders returns the registered folders, sorted.
func (r *Registry) Folders() []domain.Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Folder, 0, len(r.folders))
	for f := range r.folders {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FolderFor returns the innermost registered folder containing path.
func (r *Registry) FolderFor(path string) (domain.Folder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best domain.Folder
	for f := range r.folders {
		if f.Contains(path) && len(f) > len(best) {
			best = f
		}
	}
	return best, best != ""
}
