// Package tactiletest provides a scripted tactile.Executor for tests that
// must not spawn a real near CLI.
package tactiletest

import (
	"context"
	"fmt"
	"sync"

	"prizeops/internal/tactile"
)

// Response is a canned reply for a matched command.
type Response struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Killed    bool
	Truncated bool
	Err       error  // returned from Execute as-is
	InfraErr  string // sets ExecutionResult.Error / Success=false
}

// Rule maps a predicate over argv to a response.
type Rule struct {
	Match    func(args []string) bool
	Response Response
}

// Executor records every command and answers from its rules. The first
// matching rule wins; unmatched commands get Fallback.
type Executor struct {
	mu       sync.Mutex
	rules    []Rule
	Fallback Response
	calls    []tactile.Command
}

// New returns an empty scripted executor.
func New() *Executor {
	return &Executor{}
}

// On registers a response for commands whose argv starts with prefix.
func (e *Executor) On(prefix []string, resp Response) *Executor {
	return e.OnFunc(func(args []string) bool { return HasPrefix(args, prefix) }, resp)
}

// OnFunc registers a response for commands accepted by match.
func (e *Executor) OnFunc(match func(args []string) bool, resp Response) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, Rule{Match: match, Response: resp})
	return e
}

// Validate rejects commands without a binary, like the direct executor.
func (e *Executor) Validate(cmd tactile.Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute records cmd and returns the scripted response.
func (e *Executor) Execute(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	if err := e.Validate(cmd); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calls = append(e.calls, cmd)
	resp := e.Fallback
	for _, r := range e.rules {
		if r.Match(cmd.Arguments) {
			resp = r.Response
			break
		}
	}
	e.mu.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}
	if err := ctx.Err(); err != nil {
		return &tactile.ExecutionResult{Success: true, ExitCode: -1, Killed: true, KillReason: "context canceled", Command: &cmd}, nil
	}

	result := &tactile.ExecutionResult{
		Success:   resp.InfraErr == "",
		ExitCode:  resp.ExitCode,
		Stdout:    resp.Stdout,
		Stderr:    resp.Stderr,
		Killed:    resp.Killed,
		Truncated: resp.Truncated,
		Error:     resp.InfraErr,
		Command:   &cmd,
	}
	if resp.Killed {
		result.ExitCode = -1
		result.KillReason = "timeout after scripted deadline"
	}
	return result, nil
}

// Calls returns a copy of every recorded command.
func (e *Executor) Calls() []tactile.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]tactile.Command, len(e.calls))
	copy(out, e.calls)
	return out
}

// CountPrefix counts recorded commands whose argv starts with prefix.
func (e *Executor) CountPrefix(prefix ...string) int {
	n := 0
	for _, c := range e.Calls() {
		if HasPrefix(c.Arguments, prefix) {
			n++
		}
	}
	return n
}

// Reset drops recorded calls, keeping rules.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

// HasPrefix reports whether args begins with prefix.
func HasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	for i := range prefix {
		if args[i] != prefix[i] {
			return false
		}
	}
	return true
}
