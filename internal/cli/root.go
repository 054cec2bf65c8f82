package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idemcheck/internal/history"
	"github.com/roach88/idemcheck/internal/idem"
	"github.com/roach88/idemcheck/internal/shell"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format    string // "json" | "text"
	LogLevel  string
	LogFormat string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogLevels defines the accepted --log-level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// CheckOptions holds the flags of the idempotency check itself.
type CheckOptions struct {
	*RootOptions
	Iterations      int
	TempDir         string
	ChecksumCommand string
	ApplyCommand    string
	Validate        bool
	Timeout         time.Duration
	BuiltinLint     bool
	Profile         string
	Record          string
	Shell           string

	// Now overrides the run clock (for testing). Defaults to time.Now.
	Now func() time.Time

	// IDs overrides the history run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs history.IDGenerator
}

// NewRootCommand creates the root command for the idemcheck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&CheckOptions{RootOptions: &RootOptions{}})
}

func newRootCommand(opts *CheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idemcheck <config_file>",
		Short: "Check that applying a configuration is idempotent",
		Long: `Apply a configuration repeatedly and verify the system state does not change.

idemcheck captures a fingerprint of the system with the checksum command,
then runs the apply command N times, capturing a new fingerprint after each
application. The configuration is idempotent when every fingerprint equals
the one taken before the first application.

The apply command is a shell command line. Its {config_file} placeholder is
replaced with the configuration path verbatim, without quoting. Both commands
run through the system shell, so never build them from untrusted input.

Exit status is 0 when the configuration is idempotent, 1 when the check
fails for any reason, and 2 on usage errors.

An argument named "history" selects the history command, even after check
flags. To check a configuration file with that name, pass it as ./history.

Examples:
  idemcheck -c 'sha256sum /etc/app/state' -a 'app apply {config_file}' config.yaml
  idemcheck -n 5 -v -c 'iptables-save | sha256sum' -a 'fw load {config_file}' rules.json
  idemcheck --profile idemcheck.toml --record runs.db config.yaml`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateRootOptions(opts.RootOptions)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args[0])
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	})

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	pf.StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")

	// Check flags
	f := cmd.Flags()
	f.IntVarP(&opts.Iterations, "num_iterations", "n", idem.MinIterations, "number of times to apply the configuration (at least 2)")
	f.StringVarP(&opts.TempDir, "temp_dir", "t", "", "working directory for the commands, created if absent and never removed")
	f.StringVarP(&opts.ChecksumCommand, "checksum_command", "c", "", "shell command printing the system state fingerprint (required)")
	f.StringVarP(&opts.ApplyCommand, "apply_command", "a", "", "shell command applying the configuration, {config_file} is replaced with its path (required)")
	f.BoolVarP(&opts.Validate, "validate", "v", false, "lint the configuration file before applying it")
	f.DurationVar(&opts.Timeout, "timeout", 0, "per-command timeout, 0 waits forever")
	f.BoolVar(&opts.BuiltinLint, "builtin-lint", false, "validate with in-process parsers instead of external linters")
	f.StringVar(&opts.Profile, "profile", "", "YAML or TOML file supplying defaults for these flags")
	f.StringVar(&opts.Record, "record", "", "append the run to this SQLite history database")
	f.StringVar(&opts.Shell, "shell", shell.DefaultShell, "shell used to run the checksum and apply commands")

	// Add subcommands
	cmd.AddCommand(NewHistoryCommand(opts.RootOptions))

	return cmd
}

func validateRootOptions(opts *RootOptions) error {
	if !slices.Contains(ValidFormats, opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if !slices.Contains(ValidLogLevels, opts.LogLevel) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid log level %q: must be one of %v", opts.LogLevel, ValidLogLevels))
	}
	if !slices.Contains(ValidFormats, opts.LogFormat) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
	}
	return nil
}

// usageArgs maps positional argument errors to ExitCommandError.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// newLogger builds the single logger handed to every component.
func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
