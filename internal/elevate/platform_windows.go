//go:build windows

package elevate

import (
	"context"
	"fmt"
	"strings"

	"hudo/internal/runner"
)

// UACElevator runs commands through PowerShell Start-Process -Verb RunAs.
type UACElevator struct {
	Runner runner.Runner
}

func (e UACElevator) Elevate(ctx context.Context, command string, args []string) error {
	script := uacScript(command, args)
	res, err := e.Runner.Run(ctx, "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}, runner.RunOptions{})
	if res.ExitCode == errorCancelled {
		return ErrElevationDenied
	}
	if err != nil {
		return fmt.Errorf("start %s elevated: %w: %s", command, err, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// Default returns the elevator and service query for this OS.
func Default(r runner.Runner) (Elevator, ServiceQuery) {
	return UACElevator{Runner: r}, SCQuery{Runner: r}
}
