package infra

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// CommandExecutorImpl implements domain.CommandExecutor with os/exec.
type CommandExecutorImpl struct{}

// NewCommandExecutor creates a subprocess executor.
func NewCommandExecutor() domain.CommandExecutor {
	return &CommandExecutorImpl{}
}

// Run executes name with args in dir and waits for it to exit.
func (e *CommandExecutorImpl) Run(ctx context.Context, dir, name string, args []string) (domain.ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = nil // Prevent any interactive prompts

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := domain.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	result.ExitCode = -1
	return result, err
}

// Ensure CommandExecutorImpl implements domain.CommandExecutor.
var _ domain.CommandExecutor = (*CommandExecutorImpl)(nil)
