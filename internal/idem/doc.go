// Package idem runs the configuration idempotency check.
//
// A run moves through these stages, strictly in order and on a single
// goroutine:
//
//	Init -> Validating (optional) -> Preparing -> CapturingInitial
//	     -> { Applying(i) -> CapturingChecksum(i) } for i = 1..N
//	     -> Reporting -> Cleanup -> Terminal
//
// Init checks preconditions (the configuration file exists, N >= 2) and
// never runs a command. Any failure after Init skips straight to Cleanup.
//
// N applies produce N+1 fingerprints. Every fingerprint is compared with
// the baseline captured before the first apply, so a configuration that
// changes the system once and then stays put is still reported as not
// idempotent: applying it was not a no-op.
//
// Cleanup removes the working directory only when the orchestrator
// created it. A directory supplied by the caller is left alone. Cleanup
// errors are logged and dropped.
package idem
