package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tonimelisma/notesync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagWorkspace  string
	flagOnConflict string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Resolved

// httpClientTimeout bounds every request to the note server.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// CLIContext carries what every command needs after the pre-run phase.
type CLIContext struct {
	Cfg    *config.Resolved
	Logger *slog.Logger
	Flags  CLIFlags

	closeLog func() error
}

// CLIFlags is a snapshot of the persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. Commands
// only run after it, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("notesync: command ran without CLI context")
	}

	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notesync",
		Short:   "Simplenote sync client",
		Long:    "Keeps a local copy of your Simplenote notes in sync, with open notes as plain files.",
		Version: version,
		// Errors are printed by exitOnError.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			logger, closeLog := buildLogger(os.Stderr)

			cc := &CLIContext{
				Cfg:    resolvedCfg,
				Logger: logger,
				Flags: CLIFlags{
					ConfigPath: flagConfigPath,
					JSON:       flagJSON,
					Verbose:    flagVerbose,
					Quiet:      flagQuiet,
				},
				closeLog: closeLog,
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if cc.closeLog != nil {
				return cc.closeLog()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "directory holding open notes")
	cmd.PersistentFlags().StringVar(&flagOnConflict, "on-conflict", "", "conflict policy: ask, use_server or keep_local")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newOpenCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only explicitly set flags override the lower layers.
	if cmd.Flags().Changed("workspace") {
		cli.Workspace = &flagWorkspace
	}

	if cmd.Flags().Changed("on-conflict") {
		cli.OnConflict = &flagOnConflict
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates the logger for a command. The config file sets the
// baseline level and --verbose/--quiet override it. When logging.log_file
// is set, records go to a rotated file instead of stderr; the returned
// function closes it.
func buildLogger(stderr io.Writer) (*slog.Logger, func() error) {
	level := slog.LevelInfo

	var logCfg config.LoggingConfig
	if resolvedCfg != nil {
		logCfg = resolvedCfg.Logging
	}

	switch logCfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if logCfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), func() error { return nil }
	}

	rotator := &lumberjack.Logger{
		Filename: logCfg.LogFile,
		MaxAge:   logCfg.LogRetentionDays,
		Compress: true,
	}

	return slog.New(slog.NewJSONHandler(rotator, opts)), rotator.Close
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
