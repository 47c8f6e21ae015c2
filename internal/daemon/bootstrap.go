package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ForegroundFlag marks a re-executed supervisor so it does not fork again.
const ForegroundFlag = "--foreground"

// StartBackground re-executes the current binary detached from the terminal.
// args are passed through after ForegroundFlag is appended; output goes to
// logPath. It returns the child's pid.
func StartBackground(args []string, logPath string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartBackgroundWithPath(executable, args, logPath)
}

// StartBackgroundWithPath is StartBackground with an explicit binary path.
func StartBackgroundWithPath(executable string, args []string, logPath string) (int, error) {
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer out.Close()

	cmd := backgroundCommand(executable, args, out)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", executable, err)
	}
	pid := cmd.Process.Pid
	// The child outlives us; nobody waits on it.
	_ = cmd.Process.Release()
	return pid, nil
}

func backgroundCommand(executable string, args []string, out *os.File) *exec.Cmd {
	argv := append(append([]string{}, args...), ForegroundFlag)
	cmd := exec.Command(executable, argv...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd
}
