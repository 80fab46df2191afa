package worker

import (
	"context"
	"errors"
	"os/exec"
)

// Runner runs an external program and returns its combined output and
// exit code. err is only set when the program could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (output []byte, code int, err error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return out, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, exitErr.ExitCode(), nil
	}
	return out, -1, err
}
