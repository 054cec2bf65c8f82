package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idemcheck/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryList is the payload of `history` in JSON format.
type HistoryList struct {
	Runs []history.Run `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with --record, newest first.

Two runs share a digest only when their fingerprint sequences are
byte-identical. Fingerprints that are not valid UTF-8 are also listed
hex-encoded under fingerprints_hex in JSON output.

Examples:
  idemcheck history --db ./runs.db
  idemcheck history --db ./runs.db --limit 5 --format json
  idemcheck history show --db ./runs.db 0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list, 0 for all")

	cmd.AddCommand(newHistoryShowCommand(opts))

	return cmd
}

func newHistoryShowCommand(opts *HistoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run with its fingerprints",
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, cmd, args[0])
		},
	}
}

func openHistory(path string) (*history.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, `required flag(s) "db" not set`)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "history database not found", err)
	}
	st, err := history.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	return st, nil
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := openHistory(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: out}
		return f.Success(HistoryList{Runs: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tVERDICT\tITERATIONS\tCONFIG")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			run.ID, run.StartedAt.Format(time.RFC3339), verdict(run), run.Iterations, run.ConfigFile)
	}
	return tw.Flush()
}

func runHistoryShow(opts *HistoryOptions, cmd *cobra.Command, id string) error {
	st, err := openHistory(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(run)
	}
	return f.Success(formatRun(run))
}

// verdict summarizes a run in one word, or names the stage it failed in.
func verdict(run history.Run) string {
	switch {
	case !run.Completed:
		return "aborted:" + run.FailedStage
	case run.Idempotent:
		return "idempotent"
	default:
		return "not-idempotent"
	}
}

func formatRun(run history.Run) string {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "%-14s%s\n", label+":", value)
	}
	field("run id", run.ID)
	field("verdict", verdict(run))
	field("config", run.ConfigFile)
	field("apply", run.ApplyCommand)
	field("checksum", run.ChecksumCommand)
	field("iterations", fmt.Sprint(run.Iterations))
	field("validated", fmt.Sprint(run.Validated))
	field("started", run.StartedAt.Format(time.RFC3339))
	field("finished", run.FinishedAt.Format(time.RFC3339))
	if run.Error != "" {
		field("error", run.Error)
	}
	field("digest", run.Digest)
	b.WriteString("fingerprints:\n")
	for i, fp := range run.Fingerprints {
		fmt.Fprintf(&b, "  [%d] %s\n", i, fp)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
