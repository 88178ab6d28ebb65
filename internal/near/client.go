// Package near drives the external near CLI. Each method builds one argv
// vector and runs it through a tactile.Executor; nothing is interpolated
// into a shell string.
package near

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prizeops/internal/logging"
	"prizeops/internal/tactile"
)

// Finality values accepted by view-state.
const (
	FinalityFinal      = "final"
	FinalityOptimistic = "optimistic"
)

// Client wraps the near CLI binary.
type Client struct {
	exec    tactile.Executor
	binary  string
	nodeURL string
	network string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the CLI executable (default "near").
func WithBinary(path string) Option {
	return func(c *Client) { c.binary = path }
}

// WithNodeURL passes --node_url on every invocation unless a call sets its own.
func WithNodeURL(url string) Option {
	return func(c *Client) { c.nodeURL = url }
}

// WithNetwork exports NEAR_ENV to the subprocess.
func WithNetwork(network string) Option {
	return func(c *Client) { c.network = network }
}

// WithTimeout bounds each invocation. Zero leaves the executor default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Client over exec.
func NewClient(exec tactile.Executor, opts ...Option) *Client {
	c := &Client{exec: exec, binary: "near"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Output is the captured result of one CLI invocation.
type Output struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	RequestID string
	Truncated bool // output hit the executor's capture limit
}

// CallRequest describes a state-changing call.
type CallRequest struct {
	Contract string
	Method   string
	Args     []byte // JSON; nil sends no argument
	Account  string
	Gas      string // yoctoNEAR gas units; empty = CLI default
	Deposit  string // optional attached deposit in NEAR
	NodeURL  string // overrides the client default
}

// View runs a read-only view call: near view <contract> <method> [<args>].
func (c *Client) View(ctx context.Context, contract, method string, args []byte) (*Output, error) {
	if contract == "" || method == "" {
		return nil, fmt.Errorf("view requires contract and method")
	}
	argv := []string{"view", contract, method}
	if len(args) > 0 {
		argv = append(argv, string(args))
	}
	argv = c.appendNodeURL(argv, "")
	return c.run(ctx, "view", method, argv)
}

// Call runs a state-changing call signed by req.Account.
func (c *Client) Call(ctx context.Context, req CallRequest) (*Output, error) {
	if req.Contract == "" || req.Method == "" {
		return nil, fmt.Errorf("call requires contract and method")
	}
	if req.Account == "" {
		return nil, fmt.Errorf("call %s requires an account", req.Method)
	}
	argv := []string{"call", req.Contract, req.Method}
	if len(req.Args) > 0 {
		argv = append(argv, string(req.Args))
	}
	argv = append(argv, "--accountId", req.Account)
	if req.Gas != "" {
		argv = append(argv, "--gas", req.Gas)
	}
	if req.Deposit != "" {
		argv = append(argv, "--deposit", req.Deposit)
	}
	argv = c.appendNodeURL(argv, req.NodeURL)
	return c.run(ctx, "call", req.Method, argv)
}

// ViewState dumps an account's full key/value storage.
func (c *Client) ViewState(ctx context.Context, account, finality, nodeURL string) (*Output, error) {
	if account == "" {
		return nil, fmt.Errorf("view-state requires an account")
	}
	if finality == "" {
		finality = FinalityFinal
	}
	argv := []string{"view-state", account, "--finality", finality}
	argv = c.appendNodeURL(argv, nodeURL)
	out, err := c.run(ctx, "view-state", account, argv)
	if err != nil {
		return out, err
	}
	// A partial dump would silently drop keys.
	if out.Truncated {
		return out, &CommandError{Op: "view-state", Target: account, ExitCode: out.ExitCode, Err: ErrTruncated}
	}
	return out, nil
}

func (c *Client) appendNodeURL(argv []string, override string) []string {
	url := override
	if url == "" {
		url = c.nodeURL
	}
	if url == "" {
		return argv
	}
	return append(argv, "--node_url", url)
}

func (c *Client) run(ctx context.Context, op, target string, argv []string) (*Output, error) {
	cmd := tactile.Command{
		Binary:    c.binary,
		Arguments: argv,
		RequestID: uuid.NewString(),
		Tags:      map[string]string{"op": op, "target": target},
	}
	if c.network != "" {
		cmd.Environment = []string{"NEAR_ENV=" + c.network}
	}
	if c.timeout > 0 {
		cmd.TimeoutMs = c.timeout.Milliseconds()
	}

	log := logging.Get(logging.CategoryNear).With("request_id", cmd.RequestID, "op", op)
	log.Debug("exec: %s", cmd.CommandString())

	res, err := c.exec.Execute(ctx, cmd)
	if err != nil {
		return nil, &CommandError{Op: op, Target: target, ExitCode: -1, Err: err}
	}

	out := &Output{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
		RequestID: cmd.RequestID,
		Truncated: res.Truncated,
	}
	if res.Truncated {
		logging.NearWarn("%s %s: output truncated, %d bytes discarded (req=%s)", op, target, res.TruncatedBytes, cmd.RequestID)
	}

	switch {
	case res.IsError():
		return out, &CommandError{Op: op, Target: target, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: errors.New(res.Error)}
	case res.Killed:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, &CommandError{Op: op, Target: target, ExitCode: -1, Err: ctxErr}
		}
		return out, &CommandError{Op: op, Target: target, ExitCode: -1, Stderr: res.Stderr, Err: fmt.Errorf("killed: %s", res.KillReason)}
	case res.ExitCode != 0:
		return out, &CommandError{Op: op, Target: target, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	log.Debug("%s %s ok in %s (%d bytes)", op, target, res.Duration, len(res.Stdout))
	return out, nil
}

// ErrTruncated means the CLI printed more than the executor would capture.
var ErrTruncated = errors.New("output truncated; raise execution.max_output_bytes")

// CommandError reports a near CLI invocation that did not exit cleanly.
type CommandError struct {
	Op       string
	Target   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "near %s %s", e.Op, e.Target)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	if tail := stderrTail(e.Stderr); tail != "" {
		fmt.Fprintf(&b, ": %s", tail)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

// stderrTail keeps the last non-empty line; the CLI prints the useful part
// of an RPC failure at the end.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			if len(l) > 200 {
				l = l[:200] + "..."
			}
			return l
		}
	}
	return ""
}
