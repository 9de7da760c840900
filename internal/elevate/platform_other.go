//go:build !windows

package elevate

import (
	"context"
	"os"
	"strings"

	"hudo/internal/runner"
)

// SudoElevator runs commands through sudo, or directly when already root.
type SudoElevator struct {
	Runner runner.Runner
}

func (e SudoElevator) Elevate(ctx context.Context, command string, args []string) error {
	if os.Geteuid() == 0 {
		_, err := e.Runner.Run(ctx, command, args, runner.RunOptions{})
		return err
	}
	res, err := e.Runner.Run(ctx, "sudo", append([]string{command}, args...), runner.RunOptions{Stderr: os.Stderr})
	if err != nil && sudoDenied(string(res.Stderr)) {
		return ErrElevationDenied
	}
	return err
}

func sudoDenied(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"incorrect password", "not in the sudoers", "a password is required", "authentication failure"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Default returns the elevator and service query for this OS.
func Default(r runner.Runner) (Elevator, ServiceQuery) {
	return SudoElevator{Runner: r}, SystemdQuery{Runner: r}
}
