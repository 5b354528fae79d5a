package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/internal/buildinfo"
	"github.com/offlinefirst/action-observer/pkg/config"
	"github.com/offlinefirst/action-observer/pkg/logging"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

// RootCommand owns the cobra tree and the global flags shared by every
// subcommand.
type RootCommand struct {
	cmd        *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:   "observer",
		Short: "Record clicks, typing and push-to-talk audio into an action log",
		Long: `observer records what happens at the keyboard and pointer into a
line-delimited JSON log, with a screenshot pair for every click and a WAV
file for every push-to-talk recording.

Examples:
  # Record until Ctrl+C
  observer run

  # Record a scripted session for ten seconds
  observer run --synthetic --duration 10s

  # Watch the log as it grows
  observer tail --follow

  # Pack the last recording for hand-off
  observer bundle`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SuggestionsMinimumDistance = 2

	flags := root.PersistentFlags()
	flags.StringVar(&rc.configPath, "config", "", "Path to config file (default: ./config.yaml if present)")
	flags.StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console, auto)")

	root.AddCommand(
		rc.newRunCommand(),
		rc.newSessionsCommand(),
		rc.newBundleCommand(),
		rc.newTailCommand(),
		rc.newDoctorCommand(),
		rc.newVersionCommand(),
	)

	rc.cmd = root
	return rc
}

// SetOutput redirects command output, mainly for tests.
func (rc *RootCommand) SetOutput(stdout, stderr io.Writer) {
	rc.stdout = stdout
	rc.stderr = stderr
}

// Execute parses args and dispatches to a subcommand.
func (rc *RootCommand) Execute(args []string) error {
	return rc.ExecuteContext(context.Background(), args)
}

// ExecuteContext is Execute with a caller-supplied context; cancelling it
// stops a running session the same way an interrupt does.
func (rc *RootCommand) ExecuteContext(ctx context.Context, args []string) error {
	rc.cmd.SetArgs(args)
	rc.cmd.SetOut(rc.stdout)
	rc.cmd.SetErr(rc.stderr)
	if err := rc.cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rc.stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: rc.stderr,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("configuration loaded", "source", cfg.Source, "data_dir", cfg.Paths.DataDir, "log_file", cfg.Paths.LogFile)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	return fmt.Sprintf("%s (%s/%s)", buildinfo.Describe(), runtimeVersion(), runtimeGOOS())
}

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return runtime.Version() }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }
