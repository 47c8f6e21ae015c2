package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
	"github.com/eliteGoblin/focusd/tc_mon/internal/usecase"
)

var checkCmd = &cobra.Command{
	Use:   "check [folder...]",
	Short: "Check folders once and print diagnostics",
	Long: `Runs 'dmypy run' in every folder, starting its daemon if needed, and
prints the diagnostics. The daemons are left running so the next check is
fast; pass --stop to stop them afterwards.

Exits with status 1 when any error is reported.`,
	RunE: runCheck,
}

var stopCmd = &cobra.Command{
	Use:   "stop [folder...]",
	Short: "Stop the folders' dmypy daemons",
	RunE:  runStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart [folder...]",
	Short: "Restart the folders' dmypy daemons",
	Long:  `Restarts each daemon so that it picks up new settings or a new interpreter.`,
	RunE:  runRestart,
}

var statusCmd = &cobra.Command{
	Use:   "status [folder...]",
	Short: "Show the state of the folders' dmypy daemons",
	RunE:  runStatus,
}

var checkStop bool

func init() {
	checkCmd.Flags().BoolVar(&checkStop, "stop", false, "Stop the daemons after checking")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(args, false)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	folders, err := a.folders()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	checkErr := a.workspace.AddFolders(ctx, folders)

	errorsFound := 0
	for _, f := range folders {
		state, ok := a.registry.Get(f)
		if !ok {
			continue
		}
		for _, ds := range state.Diagnostics.Snapshot() {
			for _, d := range ds {
				if d.Severity == domain.SeverityError {
					errorsFound++
				}
			}
		}
	}

	if checkStop {
		a.workspace.Shutdown(context.WithoutCancel(ctx))
	}

	if checkErr != nil {
		return checkErr
	}
	if errorsFound > 0 {
		return errIssuesFound
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := newApp(args, false)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	folders, err := a.folders()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	outcomes := usecase.ForEach(ctx, folders, func(ctx context.Context, f domain.Folder) error {
		status, err := a.controller.Status(f)
		if err == nil && !status.Alive {
			fmt.Printf("%s: not running\n", f.Name())
			return nil
		}
		if err := a.controller.Stop(ctx, f, a.settings.FolderSettings(f)); err != nil {
			return err
		}
		fmt.Printf("%s: stopped\n", f.Name())
		return nil
	})
	return usecase.Join(outcomes)
}

func runRestart(cmd *cobra.Command, args []string) error {
	a, err := newApp(args, false)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := a.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	folders, err := a.folders()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	outcomes := usecase.ForEach(ctx, folders, func(ctx context.Context, f domain.Folder) error {
		if err := a.controller.Restart(ctx, f, a.settings.FolderSettings(f)); err != nil {
			return err
		}
		fmt.Printf("%s: restarted\n", f.Name())
		return nil
	})
	return usecase.Join(outcomes)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(args, false)
	if err != nil {
		return err
	}
	defer a.close()

	folders, err := a.folders()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Folder", "State", "PID", "Status file"})

	running := 0
	for _, f := range folders {
		status, err := a.controller.Status(f)
		state := string(status.State)
		pid := "-"
		if err != nil {
			state = "unknown"
		} else if status.PID > 0 {
			pid = strconv.Itoa(status.PID)
			if !status.Alive {
				state = "stale"
			}
		}
		if status.Alive {
			running++
		}
		t.AppendRow(table.Row{f.Path(), state, pid, status.StatusFile})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d running", running, len(folders)), "", ""})
	t.Render()

	if a.configExists {
		fmt.Printf("Config: %s\n", a.configPath)
	} else {
		fmt.Println("Config: none (defaults)")
	}
	fmt.Printf("Storage: %s [%s]\n", a.storage.Root(), a.mode.Mode)
	return nil
}
