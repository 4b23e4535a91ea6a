package foundry

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner runs an external command and returns its combined output.
// Implementations must stop the process when ctx is done.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec. CommandContext kills the process on
// ctx expiry; WaitDelay bounds how long we wait for its pipes afterwards.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}
