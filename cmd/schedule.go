package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/complyflow/complyflow/internal/daemon"
	"github.com/complyflow/complyflow/internal/models"
	"github.com/complyflow/complyflow/internal/output"
	"github.com/complyflow/complyflow/internal/schedule"
)

// stopGracePeriod is how long 'schedule stop' waits before sending SIGKILL.
const stopGracePeriod = 10 * time.Second

var (
	scheduleForeground bool
	scheduleURLs       []string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Scan the configured URLs periodically",
	Long: `Run scheduled scans over schedule.urls at schedule.frequency
(hourly, twicedaily, daily, weekly or a duration such as "90m").

Scheduled scans are stored with type "scheduled".`,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduled pass over every configured URL and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleRunOnce()
	},
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler in the background",
	Long: `Start the scheduler as a background process. Its output goes to
complyflow-schedule.log in the state directory.

With --foreground the scheduler runs in the current process until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scheduleForeground {
			return scheduleForegroundRun()
		}
		return scheduleStartRun()
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background scheduler is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleStatusRun()
	},
}

var scheduleStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleStopRun()
	},
}

func init() {
	scheduleCmd.PersistentFlags().StringSliceVar(&scheduleURLs, "url", nil, "URL to scan (repeatable, overrides schedule.urls)")
	scheduleCmd.PersistentFlags().String("frequency", "", "Scan frequency (overrides schedule.frequency)")
	_ = viper.BindPFlag("schedule.frequency", scheduleCmd.PersistentFlags().Lookup("frequency"))

	scheduleStartCmd.Flags().BoolVar(&scheduleForeground, "foreground", false, "Run in the current process instead of detaching")

	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	scheduleCmd.AddCommand(scheduleStopCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "complyflow-schedule.pid"))
}

func scheduleLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "complyflow-schedule.log")
}

func configuredURLs() []string {
	if len(scheduleURLs) > 0 {
		return scheduleURLs
	}
	return viper.GetStringSlice("schedule.urls")
}

// newRunner builds a scheduler over the configured URLs that stores its
// scans as scheduled rows.
func newRunner(logger *slog.Logger) (*schedule.Runner, error) {
	freq, err := schedule.ParseFrequency(viper.GetString("schedule.frequency"))
	if err != nil {
		return nil, err
	}
	urls := configuredURLs()
	if len(urls) == 0 {
		return nil, errors.New("no URLs to scan: set schedule.urls or pass --url")
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}
	sc, err := newScanner(s, models.ScanTypeScheduled, nil)
	if err != nil {
		return nil, err
	}
	return &schedule.Runner{
		Scanner:   sc,
		URLs:      urls,
		Frequency: freq,
		Logger:    logger,
	}, nil
}

func scheduleRunOnce() error {
	if dryRun {
		for _, u := range configuredURLs() {
			ui.DryRunMsg("Would scan %s", u)
		}
		return nil
	}

	r, err := newRunner(newLogger())
	if err != nil {
		return err
	}

	outcomes := r.RunOnce(cmdContext())
	table := ui.Table([]string{"URL", "Result", "Score", "Scan"})
	failures := 0
	for _, o := range outcomes {
		if !o.Result.Success {
			failures++
			if err := table.Append([]string{o.URL, output.Red(o.Result.Error), "-", "-"}); err != nil {
				return err
			}
			continue
		}
		if err := table.Append([]string{
			o.URL,
			output.Green("ok"),
			output.ScoreColor(o.Result.Score),
			o.Result.ScanID,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d scheduled scans failed", failures, len(outcomes))
	}
	return nil
}

// scheduleForegroundRun holds the PID file and runs passes until a shutdown
// signal arrives.
func scheduleForegroundRun() error {
	logger := slog.New(slog.NewTextHandler(ui.ErrOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r, err := newRunner(logger)
	if err != nil {
		return err
	}

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return fmt.Errorf("scheduler %w", err)
	}
	defer func() { _ = pf.Release() }()

	ctx, stop := signal.NotifyContext(cmdContext(), shutdownSignals()...)
	defer stop()
	return r.Run(ctx)
}

// scheduleStartRun re-executes the binary detached with --foreground.
func scheduleStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("scheduler already running (pid %d)", pid)
	}

	// Fail here rather than in the detached child's log.
	if _, err := schedule.ParseFrequency(viper.GetString("schedule.frequency")); err != nil {
		return err
	}
	urls := configuredURLs()
	if len(urls) == 0 {
		return errors.New("no URLs to scan: set schedule.urls or pass --url")
	}

	if dryRun {
		ui.DryRunMsg("Would start scheduler for %d URLs, logging to %s", len(urls), scheduleLogPath())
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	logPath := scheduleLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"schedule", "start", "--foreground", "--frequency", viper.GetString("schedule.frequency")}
	for _, u := range scheduleURLs {
		args = append(args, "--url", u)
	}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	pid := child.Process.Pid
	if err := pf.WritePID(pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Scheduler started (pid %d)", pid)
	ui.Info("Logs: %s", logPath)
	return nil
}

func scheduleStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Scheduler is not running")
		return nil
	}
	ui.Success("Scheduler is running (pid %d)", pid)
	ui.Info("Frequency: %s", viper.GetString("schedule.frequency"))
	ui.Info("URLs: %d", len(configuredURLs()))
	ui.Info("Logs: %s", scheduleLogPath())
	return nil
}

func scheduleStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		if pid > 0 {
			_ = pf.Remove()
		}
		return errors.New("scheduler is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop scheduler (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal scheduler: %w", err)
	}

	deadline := time.Now().Add(stopGracePeriod)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if _, alive := pf.IsRunning(); alive {
		ui.Warning("Scheduler did not exit after %s, killing", stopGracePeriod)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill scheduler: %w", err)
		}
	}

	if err := pf.Remove(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	ui.Success("Scheduler stopped (pid %d)", pid)
	return nil
}
