// Package diag turns dmypy reports into diagnostics and keeps the
// per-folder diagnostic sets.
package diag

import (
	"fmt"
	"iter"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// outputPattern matches one report line:
//
//	file:[line:][column:] severity: message
var outputPattern = regexp.MustCompile(`(?m)^(?P<file>[^:\n]+):((?P<line>\d+):)?((?P<column>\d+):)? (?P<type>\w+): (?P<message>.*)$`)

var (
	fileIdx    = outputPattern.SubexpIndex("file")
	lineIdx    = outputPattern.SubexpIndex("line")
	columnIdx  = outputPattern.SubexpIndex("column")
	typeIdx    = outputPattern.SubexpIndex("type")
	messageIdx = outputPattern.SubexpIndex("message")
)

// Parse returns the diagnostics in stdout, in input order.
// Relative file names are resolved against root. Lines that do not match
// the report grammar are skipped.
func Parse(root domain.Folder, stdout string) iter.Seq[domain.Diagnostic] {
	return func(yield func(domain.Diagnostic) bool) {
		for _, m := range outputPattern.FindAllStringSubmatch(stdout, -1) {
			d, ok := fromMatch(root, m)
			if !ok {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// ParseAll collects Parse into a slice.
func ParseAll(root domain.Folder, stdout string) []domain.Diagnostic {
	var out []domain.Diagnostic
	for d := range Parse(root, stdout) {
		out = append(out, d)
	}
	return out
}

func fromMatch(root domain.Folder, m []string) (domain.Diagnostic, bool) {
	line, ok := position(m[lineIdx])
	if !ok {
		return domain.Diagnostic{}, false
	}
	column, ok := position(m[columnIdx])
	if !ok {
		return domain.Diagnostic{}, false
	}

	kind := m[typeIdx]
	severity := domain.SeverityInfo
	if kind == "error" {
		severity = domain.SeverityError
	}

	return domain.Diagnostic{
		File:     resolveFile(root, m[fileIdx]),
		Line:     line,
		Column:   column,
		Severity: severity,
		Kind:     kind,
		Message:  m[messageIdx],
	}, true
}

// position converts a 1-based number (absent or 0 means 1) to 0-based.
// It fails only when the number overflows.
func position(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return max(n-1, 0), true
}

func resolveFile(root domain.Folder, file string) string {
	if filepath.IsAbs(file) || root == "" {
		return file
	}
	return filepath.Join(root.Path(), file)
}

// Format renders a diagnostic back into report-line form with 1-based positions.
func Format(d domain.Diagnostic) string {
	kind := d.Kind
	if kind == "" {
		kind = d.Severity.String()
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line+1, d.Column+1, kind, d.Message)
}
