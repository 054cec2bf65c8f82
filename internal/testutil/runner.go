package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/idemcheck/internal/shell"
)

// Response is one scripted outcome of a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Call records one invocation seen by a ScriptedRunner.
type Call struct {
	Line string
	Env  []string
}

// ScriptedRunner stands in for shell.Runner in tests that need to count
// invocations or feed exact outputs without spawning processes.
//
// Each command line has a queue of responses. Calls consume the queue in
// order and the last response repeats once the queue is drained. Lines
// with no script succeed with empty output.
type ScriptedRunner struct {
	mu      sync.Mutex
	scripts map[string][]Response
	calls   []Call
}

// NewScriptedRunner creates an empty runner.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{scripts: make(map[string][]Response)}
}

// On appends responses for line and returns the runner for chaining.
func (r *ScriptedRunner) On(line string, responses ...Response) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[line] = append(r.scripts[line], responses...)
	return r
}

// Outputs is shorthand for On with successful responses printing each value.
func (r *ScriptedRunner) Outputs(line string, stdout ...string) *ScriptedRunner {
	responses := make([]Response, len(stdout))
	for i, s := range stdout {
		responses[i] = Response{Stdout: s}
	}
	return r.On(line, responses...)
}

// Run implements the runner interface used by idem, apply and fingerprint.
func (r *ScriptedRunner) Run(ctx context.Context, line string, env ...string) (shell.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Line: line, Env: append([]string(nil), env...)})

	if err := ctx.Err(); err != nil {
		res := shell.Result{Command: line, ExitCode: -1}
		return res, &shell.CommandError{Kind: shell.KindCanceled, Command: line, Result: res, Err: err}
	}

	var resp Response
	if queue := r.scripts[line]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			r.scripts[line] = queue[1:]
		}
	}

	res := shell.Result{Command: line, ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.ExitCode != 0 {
		return res, &shell.CommandError{
			Kind:    shell.KindExit,
			Command: line,
			Result:  res,
			Err:     fmt.Errorf("exit status %d", resp.ExitCode),
		}
	}
	return res, nil
}

// Calls returns every recorded invocation in order.
func (r *ScriptedRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the command line of every recorded invocation in order.
func (r *ScriptedRunner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.calls))
	for i, c := range r.calls {
		lines[i] = c.Line
	}
	return lines
}

// Count returns how many times line was run.
func (r *ScriptedRunner) Count(line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Line == line {
			n++
		}
	}
	return n
}
