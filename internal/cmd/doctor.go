package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/slurmlongrun/internal/errors"
	"github.com/3leaps/slurmlongrun/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  slurmlongrun doctor    # Full environment check`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	observability.CLILogger.Info("=== slurmlongrun doctor ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 6

	// Check 1: Go version
	goVersion := runtime.Version()
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	// Checks 2-4: Slurm command-line tools. sbatch and sacct are
	// required for supervision; scontrol only improves freshness.
	for _, tool := range []string{"sbatch", "sacct"} {
		path, err := exec.LookPath(tool)
		if err != nil {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking %s... ❌ not found in PATH", checkNum, totalChecks, tool))
			printSlurmToolsHelp()
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable,
				fmt.Sprintf("Required Slurm tool %q is missing", tool),
				errwrap.NewExternalServiceError("Slurm scheduler tools unavailable"))
		}
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking %s... ✅ %s", checkNum, totalChecks, tool, path),
			zap.String("path", path))
		checkNum++
	}
	if path, err := exec.LookPath("scontrol"); err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking scontrol... ⚠️  not found (live job views will rely on accounting only)", checkNum, totalChecks))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking scontrol... ✅ %s", checkNum, totalChecks, path),
			zap.String("path", path))
	}
	checkNum++

	// Check 5: Data directory writability
	runsDir := appConfig.RunsDir()
	if err := checkDirWritable(runsDir); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking data directory... ❌ %s not writable", checkNum, totalChecks, runsDir),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking data directory... ✅ %s", checkNum, totalChecks, runsDir),
			zap.String("runs_dir", runsDir))
	}
	checkNum++

	// Check 6: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info("✅ All checks passed! Your slurmlongrun installation is healthy.")
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
}

// checkDirWritable verifies the directory exists (creating it when
// absent) and accepts a throwaway file.
func checkDirWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("data directory is not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok\n"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func printSlurmToolsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To fix: run this command on a Slurm login node, or add the")
	observability.CLILogger.Info("Slurm bin directory to PATH (often /usr/bin or a module load):")
	observability.CLILogger.Info("  module load slurm")
	observability.CLILogger.Info("")
}
