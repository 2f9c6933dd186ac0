package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/slurmlongrun/pkg/runregistry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect supervised runs",
	Long:  `List supervised runs and inspect individual run state and logs.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supervised runs",
	RunE:  runRunsList,
}

var runsStatusCmd = &cobra.Command{
	Use:   "status <run_id>",
	Short: "Show one run's record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsStatus,
}

var runsLogsCmd = &cobra.Command{
	Use:   "logs <run_id>",
	Short: "Print a run's captured output",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsLogs,
}

var (
	runsListJSON   bool
	runsListMatch  string
	runsLogsStream string
	runsLogsTail   int
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsLogsCmd)

	runsListCmd.Flags().BoolVar(&runsListJSON, "json", false, "Emit records as JSON")
	runsListCmd.Flags().StringVar(&runsListMatch, "match", "", "Only show runs whose name matches this glob")

	runsLogsCmd.Flags().StringVar(&runsLogsStream, "stream", "stdout", "Log stream to print (stdout, stderr, events)")
	runsLogsCmd.Flags().IntVar(&runsLogsTail, "tail", 0, "Only print the last N lines (0 prints everything)")
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	store := runregistry.NewStore(appConfig.RunsDir())
	runs, err := store.List()
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read run registry", err)
	}

	if runsListMatch != "" {
		if !doublestar.ValidatePattern(runsListMatch) {
			return exitError(foundry.ExitInvalidArgument, fmt.Sprintf("Invalid glob pattern %q", runsListMatch), nil)
		}
		filtered := runs[:0]
		for _, r := range runs {
			if ok, _ := doublestar.Match(runsListMatch, r.Name); ok {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	if runsListJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tNAME\tSTATE\tATTEMPTS\tJOB\tSTARTED\tENDED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			shortRunID(r.RunID),
			orDash(r.Name),
			r.State,
			r.Attempts, r.MaxRestarts+1,
			orDash(r.CurrentJobID),
			formatOptionalTime(r.StartedAt),
			formatOptionalTime(r.EndedAt))
	}
	return w.Flush()
}

func runRunsStatus(cmd *cobra.Command, args []string) error {
	store := runregistry.NewStore(appConfig.RunsDir())
	runID, err := store.Resolve(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve run", err)
	}
	rec, err := store.Get(runID)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read run record", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func runRunsLogs(cmd *cobra.Command, args []string) error {
	store := runregistry.NewStore(appConfig.RunsDir())
	runID, err := store.Resolve(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve run", err)
	}
	rec, err := store.Get(runID)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read run record", err)
	}

	var path string
	switch runsLogsStream {
	case "stdout":
		path = rec.StdoutPath
	case "stderr":
		path = rec.StderrPath
	case "events":
		path = rec.EventsPath
	default:
		return exitError(foundry.ExitInvalidArgument,
			fmt.Sprintf("Unknown stream %q (want stdout, stderr, or events)", runsLogsStream), nil)
	}
	if path == "" {
		return exitError(foundry.ExitInvalidArgument,
			fmt.Sprintf("Run %s has no %s log (foreground runs write to the terminal)", shortRunID(runID), runsLogsStream), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot open log", err)
	}
	defer func() { _ = f.Close() }()

	if runsLogsTail <= 0 {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		out := cmd.OutOrStdout()
		for scanner.Scan() {
			fmt.Fprintln(out, scanner.Text())
		}
		return scanner.Err()
	}

	lines, err := tailLines(f, runsLogsTail)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read log", err)
	}
	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

// tailLines returns the last n lines of f. Logs are small enough that a
// full read keeps this simple.
func tailLines(f *os.File, n int) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
