// Package cmd implements the slurmlongrun command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/3leaps/slurmlongrun/internal/config"
	"github.com/3leaps/slurmlongrun/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo injects build metadata from main's ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	if version != "" {
		versionInfo.Version = version
	}
	if commit != "" {
		versionInfo.Commit = commit
	}
	if buildDate != "" {
		versionInfo.BuildDate = buildDate
	}
	applyVersionTemplate()
}

func applyVersionTemplate() {
	rootCmd.Version = versionInfo.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("slurmlongrun %s (commit %s, built %s)\n",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate))
}

var (
	cfgFile string
	verbose bool
	quiet   bool

	// appConfig is loaded once in the root PersistentPreRunE and read by
	// every command.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "slurmlongrun",
	Short: "Keep a walltime-bounded Slurm workload running across resubmissions",
	Long: `slurmlongrun supervises a long-running Slurm workload that has to be
split into walltime-bounded jobs. It submits your sbatch job, watches it,
and automatically resubmits a continuation job whenever the previous one
is interrupted by the walltime limit, a deadline, preemption, a node
failure, or revocation - up to a configurable retry budget.

Continuation jobs append to the original job's logs and see the first
job's id in SLURM_LONGRUN_INITIAL_JOB_ID, so checkpoint logic in the job
script can key its state on an identity that is stable for the whole run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cmd.Context(), cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		observability.InitCLILoggerAt("slurmlongrun", logLevel(cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Log warnings and errors only")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	applyVersionTemplate()
}

// logLevel decides the effective verbosity: flags beat the configured
// level.
func logLevel(cfg *config.Config) zapcore.Level {
	switch {
	case verbose:
		return zapcore.DebugLevel
	case quiet:
		return zapcore.WarnLevel
	}
	var level zapcore.Level
	if err := level.Set(cfg.Logging.Level); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Execute runs the CLI and exits the process with the outcome's code.
func Execute() {
	err := rootCmd.Execute()
	observability.Sync()
	if err == nil {
		return
	}
	// exitError has already logged; anything else surfaces here once.
	var ece *ExitCodeError
	if !errors.As(err, &ece) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCodeFor(err))
}
