package converters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	execute "github.com/alexellis/go-execute/v2"
)

// Result is the outcome of a finished external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. Implementations must honour ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands on the host via go-execute.
type ExecRunner struct {
	Logger *slog.Logger
}

// NewExecRunner returns a Runner backed by real processes.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Logger: logger}
}

// Run starts name with args and waits for it. A command that exits non-zero
// is not an error; the exit code is reported in Result. Failing to start, or
// ctx expiring, is.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.Logger.Debug("executing", "command", name, "args", args)

	task := execute.ExecTask{
		Command: name,
		Args:    args,
	}

	res, err := task.Execute(ctx)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%s: %w", name, err)
	}
	if res.Cancelled {
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New("cancelled")
		}
		return Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: -1}, fmt.Errorf("%s: %w", name, cause)
	}
	if res.ExitCode != 0 {
		r.Logger.Warn("command exited with non-zero code", "command", name, "code", res.ExitCode, "stderr", res.Stderr)
	}

	return Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}
