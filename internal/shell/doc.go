// Package shell runs external commands for idemcheck.
//
// Two entry points exist:
//
//   - Run executes a full command line through the system shell
//     (`/bin/sh -c <line>` by default). The line is passed to the shell
//     verbatim, so quoting and escaping are the caller's responsibility.
//     Never build a command line from untrusted input.
//   - RunArgv executes an executable directly with an argument vector,
//     without shell interpretation. Linters use this path.
//
// Every invocation blocks until the child exits. A Runner with a zero
// Timeout never gives up on its own; cancelling the context is the only
// way to stop a hung command.
//
// Failures are reported as *CommandError, classified by Kind:
//
//   - KindLaunch: the process could not be started (missing executable)
//   - KindExit: the process exited non-zero
//   - KindTimeout: Runner.Timeout elapsed
//   - KindCanceled: the context was cancelled (e.g. SIGINT)
package shell
