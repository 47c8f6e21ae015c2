//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/tc_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/infra"
	"github.com/eliteGoblin/focusd/tc_mon/test/fixtures"
)

var _ = Describe("Workspace over a fake dmypy", func() {
	var (
		root    string
		s       *stack
		project *fixtures.Project
		folder  domain.Folder
		ctx     context.Context
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		s = newStack(root)

		var err error
		project, err = fixtures.NewProject(filepath.Join(root, "proj"))
		Expect(err).NotTo(HaveOccurred())
		folder = domain.Folder(project.Dir)
		ctx = context.Background()
	})

	Describe("checking a folder", func() {
		It("reports parsed diagnostics", func() {
			Expect(project.SetReport(
				"main.py:1:10: error: Incompatible types in assignment\nmain.py:1: note: see docs\n", "1")).To(Succeed())

			Expect(s.workspace.AddFolders(ctx, []domain.Folder{folder})).To(Succeed())

			state, ok := s.registry.Get(folder)
			Expect(ok).To(BeTrue())
			snap := state.Diagnostics.Snapshot()
			Expect(snap).To(HaveKey(filepath.Join(project.Dir, "main.py")))
			diags := snap[filepath.Join(project.Dir, "main.py")]
			Expect(diags).To(HaveLen(2))
			Expect(diags[0].Severity).To(Equal(domain.SeverityError))
			Expect(diags[0].Line).To(Equal(0))
			Expect(diags[0].Column).To(Equal(9))

			Expect(s.output.String()).To(ContainSubstring("main.py:1:10: error: Incompatible types in assignment"))
			Expect(s.output.String()).To(ContainSubstring("proj: 2 issue(s) in 1 file(s)"))
		})

		It("starts the daemon through run and places its status file in storage", func() {
			Expect(s.workspace.AddFolders(ctx, []domain.Folder{folder})).To(Succeed())

			Expect(s.fs.Exists(s.storage.StatusFile(folder))).To(BeTrue())
			calls := s.dmypy.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0]).To(ContainSubstring("--status-file " + s.storage.StatusFile(folder)))
			Expect(calls[0]).To(ContainSubstring("--python-executable /usr/bin/python3"))
			Expect(s.output.String()).To(ContainSubstring("proj: no issues"))
		})

		It("treats a folder without sources as clean", func() {
			Expect(project.SetReport("", "2")).To(Succeed())
			Expect(project.SetStderr("There are no .py[i] files in directory '.'\n")).To(Succeed())

			Expect(s.workspace.AddFolders(ctx, []domain.Folder{folder})).To(Succeed())

			state, _ := s.registry.Get(folder)
			Expect(state.Diagnostics.Len()).To(Equal(0))
			Expect(s.output.String()).NotTo(ContainSubstring("warning:"))
		})

		It("warns when the daemon crashes", func() {
			Expect(project.SetReport("", "2")).To(Succeed())
			Expect(project.SetStderr("Daemon crashed!\nTraceback...\n")).To(Succeed())

			err := s.workspace.AddFolders(ctx, []domain.Folder{folder})

			Expect(err).To(MatchError(domain.ErrDaemonCrash))
			Expect(s.output.String()).To(ContainSubstring("warning:"))
			Expect(s.output.String()).To(ContainSubstring("crashed"))
		})

		It("warns with the first stderr line on other failures", func() {
			Expect(project.SetReport("", "3")).To(Succeed())
			Expect(project.SetStderr("something odd\nmore\n")).To(Succeed())

			err := s.workspace.AddFolders(ctx, []domain.Folder{folder})

			Expect(err).To(HaveOccurred())
			Expect(s.output.String()).To(ContainSubstring(`mypy failed with error: "something odd"`))
		})

		It("checks folders independently", func() {
			other, err := fixtures.NewProject(filepath.Join(root, "other"))
			Expect(err).NotTo(HaveOccurred())
			Expect(other.SetReport("", "3")).To(Succeed())

			err = s.workspace.AddFolders(ctx, []domain.Folder{folder, domain.Folder(other.Dir)})

			Expect(err).To(HaveOccurred())
			Expect(s.output.String()).To(ContainSubstring("proj: no issues"))
		})
	})

	Describe("shutdown", func() {
		It("stops every daemon", func() {
			other, err := fixtures.NewProject(filepath.Join(root, "other"))
			Expect(err).NotTo(HaveOccurred())
			folders := []domain.Folder{folder, domain.Folder(other.Dir)}
			Expect(s.workspace.AddFolders(ctx, folders)).To(Succeed())

			s.workspace.Shutdown(ctx)

			Expect(s.dmypy.CountCalls("stop")).To(Equal(2))
			for _, f := range folders {
				Expect(s.fs.Exists(s.storage.StatusFile(f))).To(BeFalse())
			}

			Expect(s.workspace.FilesChanged(ctx, []string{filepath.Join(project.Dir, "main.py")}, false)).NotTo(Succeed())
			Expect(s.dmypy.CountCalls("run")).To(Equal(2))
		})

		It("retries a stop that fails once", func() {
			Expect(s.workspace.AddFolders(ctx, []domain.Folder{folder})).To(Succeed())
			Expect(os.Remove(s.storage.StatusFile(folder))).To(Succeed())

			s.workspace.Shutdown(ctx)

			Expect(s.dmypy.CountCalls("stop")).To(Equal(2))
		})
	})

	Describe("stale status files", func() {
		It("are removed by the monitor", func() {
			Expect(s.workspace.AddFolders(ctx, []domain.Folder{folder})).To(Succeed())
			statusFile := s.storage.StatusFile(folder)
			Expect(s.fs.Exists(statusFile)).To(BeTrue())

			// The fake daemon's pid is the script's own, which has exited.
			monitor := daemon.NewMonitor(s.storage, s.processes, s.fs, zap.NewNop())
			result := monitor.Sweep()

			Expect(result.Removed).To(Equal(1))
			Expect(s.fs.Exists(statusFile)).To(BeFalse())
		})
	})

	Describe("supervisor", func() {
		It("re-checks a folder when a source file changes and stops on exit", func() {
			notifier, err := infra.NewFSNotifier(zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer notifier.Close()

			cfg := daemon.DefaultSupervisorConfig()
			cfg.Debounce = 50 * time.Millisecond
			supervisor := daemon.NewSupervisor(cfg, s.workspace, notifier, nil, nil, zap.NewNop())

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- supervisor.Run(runCtx, []domain.Folder{folder}) }()

			Eventually(func() int { return s.dmypy.CountCalls("run") }, 5*time.Second, 20*time.Millisecond).Should(Equal(1))

			Expect(project.WriteFile("main.py", "x: int = 2\n")).To(Succeed())
			Eventually(func() int { return s.dmypy.CountCalls("run") }, 5*time.Second, 20*time.Millisecond).Should(BeNumerically(">=", 2))

			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			Expect(s.dmypy.CountCalls("stop")).To(Equal(1))
		})
	})
})
