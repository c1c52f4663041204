// ABOUTME: Runner hands an exported trajectory to an external nodal-analysis command
// ABOUTME: The command gets "--input <path>" appended and a bounded run time
package nodal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds one nodal-analysis run
const DefaultTimeout = 60 * time.Second

const maxStderr = 500

// ErrTimeout is returned when the command outlives its timeout
var ErrTimeout = errors.New("nodal analysis timed out")

// RunResult is the captured output of one run
type RunResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Runner executes the configured command
type Runner struct {
	Command []string
	Timeout time.Duration
}

// NewRunner splits command on whitespace, e.g. "python nodal/NodalAnalysis.py"
func NewRunner(command string, timeout time.Duration) (*Runner, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("nodal command cannot be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Command: args, Timeout: timeout}, nil
}

// Run invokes the command on inputPath. A non-zero exit returns the result
// together with an error carrying the start of stderr.
func (r *Runner) Run(ctx context.Context, inputPath string) (RunResult, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), r.Command[1:]...), "--input", inputPath)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// children that inherit the pipes must not hold Run open past the deadline
	cmd.WaitDelay = time.Second

	started := time.Now()
	err := cmd.Run()
	res := RunResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(started),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case ctx.Err() != nil:
		return res, ctx.Err()
	default:
		msg := strings.TrimSpace(res.Stderr)
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		return res, fmt.Errorf("nodal analysis failed (exit %d): %w: %s", res.ExitCode, err, msg)
	}
}
