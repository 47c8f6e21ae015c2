package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

type schedulerFixture struct {
	*controllerFixture
	scheduler *Scheduler
}

func newSchedulerFixture(settings domain.Settings, results ...domain.ExecResult) *schedulerFixture {
	cf := newControllerFixture(results...)
	return &schedulerFixture{
		controllerFixture: cf,
		scheduler:         NewScheduler(cf.controller, cf.registry, staticSettings{settings: settings}, zap.NewNop()),
	}
}

func TestCheckArgs(t *testing.T) {
	args := CheckArgs(domain.Settings{Targets: []string{"src", "tests"}, ConfigFile: "mypy.ini"})
	assert.Equal(t, []string{
		"src", "tests",
		"--show-column-numbers", "--no-error-summary", "--no-pretty", "--no-color-output",
		"--config-file", "mypy.ini",
	}, args)

	assert.Equal(t, checkFlags, CheckArgs(domain.Settings{}))
}

func TestScheduler_CheckReplacesDiagnostics(t *testing.T) {
	stdout := "/proj/a.py:10:3: error: Incompatible type\n/proj/b.py: note: see above\n"
	f := newSchedulerFixture(domain.Settings{Targets: []string{"."}}, domain.ExecResult{ExitCode: 1, Stdout: stdout})
	state := f.registry.Ensure(testFolder)

	result := f.scheduler.Check(context.Background(), testFolder)

	require.NoError(t, result.Err)
	assert.False(t, result.Dropped)
	assert.Equal(t, int64(1), result.Request.Seq)
	assert.Equal(t, 2, result.Diagnostics)

	snap := state.Diagnostics.Snapshot()
	require.Len(t, snap["/proj/a.py"], 1)
	a := snap["/proj/a.py"][0]
	assert.Equal(t, 9, a.Line)
	assert.Equal(t, 2, a.Column)
	assert.Equal(t, domain.SeverityError, a.Severity)
	assert.Equal(t, "Incompatible type", a.Message)

	require.Len(t, snap["/proj/b.py"], 1)
	assert.Equal(t, domain.SeverityInfo, snap["/proj/b.py"][0].Severity)

	assert.Equal(t, []domain.Folder{testFolder}, f.sink.cleared, "cleared before the run")
}

func TestScheduler_FailedCheckLeavesDiagnosticsCleared(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{},
		domain.ExecResult{ExitCode: 1, Stdout: "/proj/a.py:1: error: x\n"},
		domain.ExecResult{ExitCode: 3, Stderr: "unexpected"},
	)
	state := f.registry.Ensure(testFolder)

	require.NoError(t, f.scheduler.Check(context.Background(), testFolder).Err)
	require.Equal(t, 1, state.Diagnostics.Len())

	result := f.scheduler.Check(context.Background(), testFolder)
	assert.True(t, errors.Is(result.Err, domain.ErrRunFailure))
	assert.Equal(t, 0, state.Diagnostics.Len())
	assert.Equal(t, int64(2), result.Request.Seq)
}

func TestScheduler_NoSourceFilesClearsPriorDiagnostics(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{},
		domain.ExecResult{ExitCode: 1, Stdout: "/proj/a.py:1: error: x\n"},
		domain.ExecResult{ExitCode: 2, Stderr: "There are no .py[i] files in directory '.'"},
	)
	state := f.registry.Ensure(testFolder)

	require.NoError(t, f.scheduler.Check(context.Background(), testFolder).Err)
	require.Equal(t, 1, state.Diagnostics.Len())

	result := f.scheduler.Check(context.Background(), testFolder)
	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.Diagnostics)
	assert.Equal(t, 0, state.Diagnostics.Len())
}

func TestScheduler_DegenerateExitIsParsed(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{}, domain.ExecResult{ExitCode: 2, Stdout: "a.py:4: error: invalid syntax\n"})
	state := f.registry.Ensure(testFolder)

	result := f.scheduler.Check(context.Background(), testFolder)

	require.NoError(t, result.Err)
	assert.Equal(t, domain.KindDegenerateFatalExit, result.Outcome.Kind)
	snap := state.Diagnostics.Snapshot()
	require.Len(t, snap["/proj/a.py"], 1)
	assert.Equal(t, 3, snap["/proj/a.py"][0].Line)
}

func TestScheduler_NeverRunsConcurrentlyPerFolder(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.exec.hook = func(execCall) { time.Sleep(2 * time.Millisecond) }
	f.registry.Ensure(testFolder)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.scheduler.Check(context.Background(), testFolder)
		}()
	}
	wg.Wait()

	assert.Len(t, f.exec.Calls(), 20)
	assert.Equal(t, int32(1), f.exec.maxRunning.Load())
}

func TestScheduler_RunsInRequestOrder(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)

	gate := make(chan struct{})
	f.exec.hook = func(execCall) { <-gate }

	var chans []<-chan CheckResult
	chans = append(chans, f.scheduler.Schedule(context.Background(), testFolder))
	require.Eventually(t, func() bool { return len(f.exec.Calls()) == 1 }, time.Second, time.Millisecond)
	for range 4 {
		chans = append(chans, f.scheduler.Schedule(context.Background(), testFolder))
	}
	close(gate)

	var prev int64
	for _, ch := range chans {
		r := <-ch
		require.NoError(t, r.Err)
		assert.Greater(t, r.Request.Seq, prev, "checks start in the order they were scheduled")
		prev = r.Request.Seq
	}
}

func TestScheduler_FoldersRunInParallel(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure("/a")
	f.registry.Ensure("/b")

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	f.exec.hook = func(execCall) {
		started <- struct{}{}
		<-release
	}

	ra := f.scheduler.Schedule(context.Background(), "/a")
	rb := f.scheduler.Schedule(context.Background(), "/b")

	for range 2 {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("folders did not run concurrently")
		}
	}
	close(release)
	<-ra
	<-rb
}

func TestScheduler_DropsWhenInactive(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)
	f.scheduler.Deactivate()

	result := f.scheduler.Check(context.Background(), testFolder)

	assert.True(t, result.Dropped)
	assert.ErrorIs(t, result.Err, ErrInactive)
	assert.Empty(t, f.exec.Calls())
	assert.False(t, f.scheduler.Active())
}

func TestScheduler_QueuedChecksDroppedAfterDeactivate(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)

	gate := make(chan struct{})
	f.exec.hook = func(execCall) { <-gate }

	first := f.scheduler.Schedule(context.Background(), testFolder)
	require.Eventually(t, func() bool { return len(f.exec.Calls()) == 1 }, time.Second, time.Millisecond)
	second := f.scheduler.Schedule(context.Background(), testFolder)

	f.scheduler.Deactivate()
	close(gate)

	assert.NoError(t, (<-first).Err)
	r := <-second
	assert.True(t, r.Dropped)
	assert.Len(t, f.exec.Calls(), 1)
}

func TestScheduler_DropsUnknownFolder(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})

	result := f.scheduler.Check(context.Background(), "/not/open")

	assert.True(t, result.Dropped)
	assert.ErrorIs(t, result.Err, ErrFolderClosed)
}

func TestScheduler_InFlightCheckIgnoresCancellation(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.hook = func(execCall) { cancel() }

	result := <-f.scheduler.Schedule(ctx, testFolder)

	assert.NoError(t, result.Err)
	assert.False(t, result.Dropped)
	require.Len(t, f.exec.ctxErrs, 1)
	assert.NoError(t, f.exec.ctxErrs[0])
}

func TestScheduler_CancelledWhileQueued(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)

	gate := make(chan struct{})
	f.exec.hook = func(execCall) { <-gate }
	first := f.scheduler.Schedule(context.Background(), testFolder)
	require.Eventually(t, func() bool { return len(f.exec.Calls()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	second := f.scheduler.Schedule(ctx, testFolder)
	cancel()

	r := <-second
	assert.True(t, r.Dropped)
	assert.ErrorIs(t, r.Err, context.Canceled)

	close(gate)
	assert.NoError(t, (<-first).Err)
	assert.Len(t, f.exec.Calls(), 1)
}

func TestScheduler_ExclusiveWaitsForQueuedChecks(t *testing.T) {
	f := newSchedulerFixture(domain.Settings{})
	f.registry.Ensure(testFolder)

	gate := make(chan struct{})
	f.exec.hook = func(execCall) { <-gate }
	check := f.scheduler.Schedule(context.Background(), testFolder)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.scheduler.Exclusive(context.Background(), testFolder, func(context.Context) error { return nil })
	}()

	select {
	case <-done:
		t.Fatal("exclusive ran during a check")
	case <-time.After(20 * time.Millisecond):
	}
	close(gate)
	<-check
	<-done
}
