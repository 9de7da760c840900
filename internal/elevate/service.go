package elevate

import (
	"context"
	"strings"

	"hudo/internal/runner"
)

// SCQuery reads service state from the Windows service control manager via
// "sc query".
type SCQuery struct {
	Runner runner.Runner
}

// scErrServiceMissing is ERROR_SERVICE_DOES_NOT_EXIST.
const scErrServiceMissing = 1060

func (q SCQuery) State(ctx context.Context, service string) (ServiceState, error) {
	res, err := q.Runner.Run(ctx, "sc", []string{"query", service}, runner.RunOptions{})
	if res.ExitCode == scErrServiceMissing || strings.Contains(string(res.Stdout), "1060") {
		return StateAbsent, nil
	}
	if err != nil {
		return StateUnknown, err
	}
	return parseSCState(string(res.Stdout)), nil
}

func parseSCState(out string) ServiceState {
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "STATE" {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) < 2 {
			return StateUnknown
		}
		switch fields[1] {
		case "RUNNING":
			return StateRunning
		case "STOPPED":
			return StateStopped
		case "START_PENDING", "STOP_PENDING", "CONTINUE_PENDING", "PAUSE_PENDING":
			return StatePending
		default:
			return StateUnknown
		}
	}
	return StateUnknown
}

// SystemdQuery reads service state with "systemctl is-active".
type SystemdQuery struct {
	Runner runner.Runner
}

func (q SystemdQuery) State(ctx context.Context, service string) (ServiceState, error) {
	// is-active exits non-zero for anything but "active"; the text is what matters.
	res, err := q.Runner.Run(ctx, "systemctl", []string{"is-active", service}, runner.RunOptions{})
	switch strings.TrimSpace(string(res.Stdout)) {
	case "active":
		return StateRunning, nil
	case "inactive", "failed":
		// is-active also prints "inactive" for units that do not exist.
		if !q.loaded(ctx, service) {
			return StateAbsent, nil
		}
		return StateStopped, nil
	case "activating", "deactivating", "reloading":
		return StatePending, nil
	case "unknown":
		return StateAbsent, nil
	}
	if err != nil {
		return StateUnknown, err
	}
	return StateUnknown, nil
}

func (q SystemdQuery) loaded(ctx context.Context, service string) bool {
	res, err := q.Runner.Run(ctx, "systemctl", []string{"show", "-p", "LoadState", "--value", service}, runner.RunOptions{})
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(res.Stdout)) == "loaded"
}
