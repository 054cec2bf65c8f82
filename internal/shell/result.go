package shell

import (
	"fmt"
	"strings"
	"time"
)

// Result holds the output of a single command execution.
type Result struct {
	Command  string        // command line or joined argv that was run
	ExitCode int           // process exit code, -1 if the process never ran or was killed
	Stdout   string        // captured stdout
	Stderr   string        // captured stderr
	Duration time.Duration // wall time from start to exit
}

// Kind classifies why a command failed.
type Kind int

const (
	KindLaunch Kind = iota + 1
	KindExit
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindLaunch:
		return "launch"
	case KindExit:
		return "exit"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CommandError reports a failed command together with whatever output
// was captured before it failed.
type CommandError struct {
	Kind    Kind
	Command string
	Result  Result
	Err     error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case KindExit:
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.Result.ExitCode)
	case KindTimeout:
		return fmt.Sprintf("command %q timed out after %s", e.Command, e.Result.Duration.Round(time.Millisecond))
	case KindCanceled:
		return fmt.Sprintf("command %q canceled", e.Command)
	default:
		return fmt.Sprintf("command %q failed to start: %v", e.Command, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the most useful text for a human: stderr if the
// command wrote any, otherwise stdout, otherwise the error itself.
func (e *CommandError) Diagnostic() string {
	if s := strings.TrimSpace(e.Result.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(e.Result.Stdout); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
