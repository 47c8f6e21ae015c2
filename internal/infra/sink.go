package infra

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fatih/color"

	"github.com/eliteGoblin/focusd/tc_mon/internal/diag"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// ConsoleSink implements domain.DiagnosticSink by printing to a terminal.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	errorColor *color.Color
	infoColor  *color.Color
	warnColor  *color.Color
	fileColor  *color.Color
	logHint    string
}

// NewConsoleSink creates a sink writing to out. Colors follow fatih/color's
// terminal detection unless noColor is set. logHint is printed after
// warnings that have details in the log.
func NewConsoleSink(out io.Writer, noColor bool, logHint string) *ConsoleSink {
	s := &ConsoleSink{
		out:        out,
		errorColor: color.New(color.FgRed, color.Bold),
		infoColor:  color.New(color.FgCyan),
		warnColor:  color.New(color.FgYellow),
		fileColor:  color.New(color.Bold),
		logHint:    logHint,
	}
	if noColor {
		for _, c := range []*color.Color{s.errorColor, s.infoColor, s.warnColor, s.fileColor} {
			c.DisableColor()
		}
	}
	return s
}

// Replace prints the folder's full diagnostic set.
func (s *ConsoleSink) Replace(folder domain.Folder, byFile map[string][]domain.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]string, 0, len(byFile))
	total := 0
	for f, ds := range byFile {
		files = append(files, f)
		total += len(ds)
	}
	sort.Strings(files)

	if total == 0 {
		fmt.Fprintf(s.out, "%s: no issues\n", folder.Name())
		return
	}

	for _, f := range files {
		name := f
		if rel, err := filepath.Rel(folder.Path(), f); err == nil {
			name = rel
		}
		for _, d := range byFile[f] {
			kind := d.Kind
			if kind == "" {
				kind = d.Severity.String()
			}
			shown := d
			shown.File = s.fileColor.Sprint(name)
			shown.Kind = s.infoColor.Sprint(kind)
			if d.Severity == domain.SeverityError {
				shown.Kind = s.errorColor.Sprint(kind)
			}
			fmt.Fprintln(s.out, diag.Format(shown))
		}
	}
	fmt.Fprintf(s.out, "%s: %d issue(s) in %d file(s)\n", folder.Name(), total, len(files))
}

// Clear is silent; a cleared folder is reported by the next Replace.
func (s *ConsoleSink) Clear(folder domain.Folder) {}

// Warn prints an advisory message.
func (s *ConsoleSink) Warn(w domain.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "%s %s\n", s.warnColor.Sprint("warning:"), w.Message)
	if w.ShowDetails && s.logHint != "" {
		fmt.Fprintf(s.out, "         details: %s\n", s.logHint)
	}
}

// Ensure ConsoleSink implements domain.DiagnosticSink.
var _ domain.DiagnosticSink = (*ConsoleSink)(nil)
