// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Files a project folder can contain to steer the fake daemon.
const (
	// OutputFile holds the report printed by `run`.
	OutputFile = ".fake_dmypy_output"
	// StderrFile holds text printed to stderr by `run`.
	StderrFile = ".fake_dmypy_stderr"
	// ExitFile holds the exit code of `run`.
	ExitFile = ".fake_dmypy_exit"
)

// fakeDmypyScript mimics the dmypy CLI closely enough for tcmon:
// it understands --status-file, writes a status file on start/run and
// removes it on stop, and replays canned output for run.
const fakeDmypyScript = `#!/bin/sh
echo "$*" >> "$FAKE_DMYPY_CALLS"

status=""
cmd=""
while [ $# -gt 0 ]; do
  case "$1" in
    --status-file) status="$2"; shift 2 ;;
    --log-file|--python-executable) shift 2 ;;
    --) shift; break ;;
    start|restart|run|stop|status|kill)
      if [ -z "$cmd" ]; then cmd="$1"; fi
      shift ;;
    *) shift ;;
  esac
done

case "$cmd" in
  start|restart)
    echo "{\"pid\": $$, \"connection_name\": \"fake\"}" > "$status"
    echo "Daemon started"
    exit 0 ;;
  run)
    echo "{\"pid\": $$, \"connection_name\": \"fake\"}" > "$status"
    code=0
    if [ -f ` + ExitFile + ` ]; then code=$(cat ` + ExitFile + `); fi
    if [ -f ` + OutputFile + ` ]; then cat ` + OutputFile + `; fi
    if [ -f ` + StderrFile + ` ]; then cat ` + StderrFile + ` >&2; fi
    exit "$code" ;;
  stop)
    if [ -f "$status" ]; then
      rm -f "$status"
      echo "Daemon stopped"
      exit 0
    fi
    echo "Daemon is not running" >&2
    exit 2 ;;
  *)
    echo "unsupported command: $cmd" >&2
    exit 2 ;;
esac
`

// FakeDmypy is an executable shell script standing in for dmypy.
type FakeDmypy struct {
	Dir       string
	Path      string
	CallsPath string
}

// NewFakeDmypy writes the fake dmypy script into dir.
// The caller must export FAKE_DMYPY_CALLS=CallsPath before running it.
func NewFakeDmypy(dir string) (*FakeDmypy, error) {
	f := &FakeDmypy{
		Dir:       dir,
		Path:      filepath.Join(dir, "dmypy"),
		CallsPath: filepath.Join(dir, "calls.log"),
	}
	if err := os.WriteFile(f.Path, []byte(fakeDmypyScript), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(f.CallsPath, nil, 0644); err != nil {
		return nil, err
	}
	return f, nil
}

// Calls returns the argument lines of every invocation so far.
func (f *FakeDmypy) Calls() []string {
	file, err := os.Open(f.CallsPath)
	if err != nil {
		return nil
	}
	defer file.Close()

	var out []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

// CountCalls returns how many invocations ran command.
func (f *FakeDmypy) CountCalls(command string) int {
	n := 0
	for _, line := range f.Calls() {
		for _, field := range strings.Fields(line) {
			if field == command {
				n++
				break
			}
		}
	}
	return n
}

// Project is a fake Python project folder.
type Project struct {
	Dir string
}

// NewProject creates a project folder with one source file.
func NewProject(dir string) (*Project, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	p := &Project{Dir: dir}
	if err := p.WriteFile("main.py", "x: int = 1\n"); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteFile writes a file relative to the project root.
func (p *Project) WriteFile(name, content string) error {
	path := filepath.Join(p.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// SetReport makes the next runs print report with the given exit code.
func (p *Project) SetReport(report string, exitCode string) error {
	if err := p.WriteFile(OutputFile, report); err != nil {
		return err
	}
	return p.WriteFile(ExitFile, exitCode)
}

// SetStderr makes the next runs print text on stderr.
func (p *Project) SetStderr(text string) error {
	return p.WriteFile(StderrFile, text)
}
