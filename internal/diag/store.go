package diag

import (
	"sort"
	"sync"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// Store holds the current diagnostics of one folder, grouped by file.
// Every change is forwarded to the sink.
type Store struct {
	folder domain.Folder
	sink   domain.DiagnosticSink

	mu     sync.RWMutex
	byFile map[string][]domain.Diagnostic
}

// NewStore creates an empty store. sink may be nil.
func NewStore(folder domain.Folder, sink domain.DiagnosticSink) *Store {
	return &Store{
		folder: folder,
		sink:   sink,
		byFile: make(map[string][]domain.Diagnostic),
	}
}

// Replace swaps the full set for entries.
func (s *Store) Replace(entries []domain.Diagnostic) {
	grouped := Group(entries)

	s.mu.Lock()
	s.byFile = grouped
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Replace(s.folder, copyGroups(grouped))
	}
}

// Clear empties the set.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byFile = make(map[string][]domain.Diagnostic)
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Clear(s.folder)
	}
}

// Snapshot returns a copy of the current set, grouped by file.
func (s *Store) Snapshot() map[string][]domain.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyGroups(s.byFile)
}

// Len returns the number of diagnostics across all files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ds := range s.byFile {
		n += len(ds)
	}
	return n
}

// Files returns the files that currently have diagnostics, sorted.
func (s *Store) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Group buckets diagnostics by file, keeping per-file input order.
func Group(entries []domain.Diagnostic) map[string][]domain.Diagnostic {
	grouped := make(map[string][]domain.Diagnostic)
	for _, d := range entries {
		grouped[d.File] = append(grouped[d.File], d)
	}
	return grouped
}

func copyGroups(in map[string][]domain.Diagnostic) map[string][]domain.Diagnostic {
	out := make(map[string][]domain.Diagnostic, len(in))
	for f, ds := range in {
		out[f] = append([]domain.Diagnostic(nil), ds...)
	}
	return out
}
