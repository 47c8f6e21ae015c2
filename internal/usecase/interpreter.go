package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

const (
	// PlaceholderInterpreter is what an environment that has not finished
	// initializing reports instead of a real interpreter path.
	PlaceholderInterpreter = "python"

	// DefaultWarmupDelay is how long a folder's environment gets to settle.
	DefaultWarmupDelay = 5 * time.Second
)

// WarmupInterpreter decorates an InterpreterResolver: the first time a
// folder resolves to the placeholder, it waits and asks again once.
type WarmupInterpreter struct {
	next     domain.InterpreterResolver
	registry *Registry
	delay    time.Duration
	sleep    func(context.Context, time.Duration) error
	logger   *zap.Logger
}

// NewWarmupInterpreter wraps next.
func NewWarmupInterpreter(next domain.InterpreterResolver, registry *Registry, delay time.Duration, logger *zap.Logger) *WarmupInterpreter {
	return &WarmupInterpreter{
		next:     next,
		registry: registry,
		delay:    delay,
		sleep:    sleepContext,
		logger:   logger,
	}
}

// PythonPath resolves the folder's interpreter.
func (w *WarmupInterpreter) PythonPath(ctx context.Context, folder domain.Folder, settings domain.Settings) (string, error) {
	path, err := w.next.PythonPath(ctx, folder, settings)
	if err != nil {
		return "", err
	}

	state := w.registry.Ensure(folder)
	if path != PlaceholderInterpreter || state.InterpreterReady() {
		state.markInterpreterReady()
		return path, nil
	}

	w.logger.Info("got placeholder interpreter, waiting for the environment",
		zap.String("folder", folder.Path()),
		zap.Duration("delay", w.delay))
	if err := w.sleep(ctx, w.delay); err != nil {
		return "", err
	}
	state.markInterpreterReady()

	return w.next.PythonPath(ctx, folder, settings)
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure WarmupInterpreter implements domain.InterpreterResolver.
var _ domain.InterpreterResolver = (*WarmupInterpreter)(nil)
