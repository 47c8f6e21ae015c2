package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/diag"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// checkFlags are forwarded on every run so the report matches the parser.
var checkFlags = []string{"--show-column-numbers", "--no-error-summary", "--no-pretty", "--no-color-output"}

// ErrInactive is returned for checks dropped because the supervisor is
// shutting down.
var ErrInactive = errors.New("supervisor is not active")

// ErrFolderClosed is returned for checks of a folder that is no longer open.
var ErrFolderClosed = errors.New("folder is not open")

// CheckResult is the result of one scheduled check.
type CheckResult struct {
	Request     domain.CheckRequest
	Outcome     domain.RunOutcome
	Diagnostics int
	Dropped     bool
	Err         error
}

// Scheduler runs checks, one at a time per folder, in request order.
type Scheduler struct {
	lock       *KeyedLock
	controller *Controller
	registry   *Registry
	settings   SettingsSource
	logger     *zap.Logger

	active atomic.Bool
	seq    atomic.Int64
}

// NewScheduler creates an active scheduler.
func NewScheduler(controller *Controller, registry *Registry, settings SettingsSource, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		lock:       NewKeyedLock(),
		controller: controller,
		registry:   registry,
		settings:   settings,
		logger:     logger,
	}
	s.active.Store(true)
	return s
}

// Deactivate makes every check that has not started yet a no-op.
func (s *Scheduler) Deactivate() {
	s.active.Store(false)
}

// Active reports whether checks are still executed.
func (s *Scheduler) Active() bool {
	return s.active.Load()
}

// Schedule queues a check of folder behind any earlier one and returns
// a channel that receives its result. The queue position is taken before
// Schedule returns. Cancelling ctx abandons a check that is still
// waiting; a running check is never cancelled.
func (s *Scheduler) Schedule(ctx context.Context, folder domain.Folder) <-chan CheckResult {
	ticket := s.lock.Enqueue(folder.Path())
	requested := domain.CheckRequest{Folder: folder, RequestedAt: time.Now()}
	out := make(chan CheckResult, 1)

	go func() {
		defer close(out)
		if err := ticket.Wait(ctx); err != nil {
			out <- CheckResult{Request: requested, Dropped: true, Err: err}
			return
		}
		defer ticket.Release()
		out <- s.safeCheck(context.WithoutCancel(ctx), requested)
	}()

	return out
}

// Check schedules a check and waits for it.
func (s *Scheduler) Check(ctx context.Context, folder domain.Folder) CheckResult {
	return <-s.Schedule(ctx, folder)
}

// Exclusive runs fn while holding folder's check slot, after every
// check requested before it.
func (s *Scheduler) Exclusive(ctx context.Context, folder domain.Folder, fn func(context.Context) error) error {
	ticket, err := s.lock.Lock(ctx, folder.Path())
	if err != nil {
		return err
	}
	defer ticket.Release()
	return fn(ctx)
}

// CheckArgs returns the arguments forwarded to `dmypy run`.
func CheckArgs(settings domain.Settings) []string {
	args := append([]string(nil), settings.Targets...)
	args = append(args, checkFlags...)
	if settings.ConfigFile != "" {
		args = append(args, "--config-file", settings.ConfigFile)
	}
	return args
}

func (s *Scheduler) safeCheck(ctx context.Context, req domain.CheckRequest) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("check panicked", zap.String("folder", req.Folder.Path()), zap.Any("panic", r))
			result = CheckResult{Request: req, Err: fmt.Errorf("check of %s panicked: %v", req.Folder.Path(), r)}
		}
	}()
	return s.check(ctx, req)
}

func (s *Scheduler) check(ctx context.Context, req domain.CheckRequest) CheckResult {
	folder := req.Folder
	result := CheckResult{Request: req}

	if !s.active.Load() {
		s.logger.Info("not active, not checking", zap.String("folder", folder.Path()))
		result.Dropped = true
		result.Err = ErrInactive
		return result
	}
	state, ok := s.registry.Get(folder)
	if !ok {
		s.logger.Info("folder closed, not checking", zap.String("folder", folder.Path()))
		result.Dropped = true
		result.Err = ErrFolderClosed
		return result
	}

	result.Request.Seq = s.seq.Add(1)
	started := time.Now()
	log := s.logger.With(
		zap.String("folder", folder.Path()),
		zap.Int64("check", result.Request.Seq))

	settings := s.settings.FolderSettings(folder)
	args := CheckArgs(settings)
	if settings.ConfigFile != "" {
		log.Info("using config file", zap.String("config_file", settings.ConfigFile))
	}
	log.Info("check folder")

	state.Diagnostics.Clear()

	outcome := s.controller.Run(ctx, folder, settings, args, result.Request.Seq)
	result.Outcome = outcome
	if !outcome.Success {
		result.Err = outcome.Err(folder)
		return result
	}

	log.Debug("mypy output", zap.String("stdout", outcome.Stdout))
	entries := diag.ParseAll(folder, outcome.Stdout)
	state.Diagnostics.Replace(entries)
	result.Diagnostics = len(entries)

	log.Info("check finished",
		zap.Int("diagnostics", result.Diagnostics),
		zap.Duration("queued", started.Sub(req.RequestedAt)),
		zap.Duration("duration", time.Since(started)))
	return result
}
