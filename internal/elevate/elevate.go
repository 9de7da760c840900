package elevate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrElevationDenied means the user declined the privilege prompt.
	ErrElevationDenied = errors.New("elevate: elevation denied")
	// ErrElevationVerificationTimeout means the privileged step ran but the
	// service never reached the target state.
	ErrElevationVerificationTimeout = errors.New("elevate: verification timed out")
)

// ServiceState is the observed state of an OS service.
type ServiceState string

const (
	StateRunning ServiceState = "RUNNING"
	StateStopped ServiceState = "STOPPED"
	StateAbsent  ServiceState = "ABSENT"
	StatePending ServiceState = "PENDING"
	StateUnknown ServiceState = "UNKNOWN"
	// StatePresent is only used as a target: the service exists in any state.
	StatePresent ServiceState = "PRESENT"
)

// Satisfies reports whether observed meets target. A stopped target is also
// met by a service that no longer exists.
func (target ServiceState) Satisfies(observed ServiceState) bool {
	switch target {
	case StateStopped:
		return observed == StateStopped || observed == StateAbsent
	case StatePresent:
		return observed != StateAbsent && observed != StateUnknown
	default:
		return observed == target
	}
}

// Action is one privileged step followed by a service-state check.
type Action struct {
	Description string
	Command     string
	Args        []string
	Service     string
	Target      ServiceState
}

// Elevator spawns a command with elevated privileges and waits for it.
// Implementations return ErrElevationDenied when the user refuses; any other
// error is the child's own failure and is not trusted either way.
type Elevator interface {
	Elevate(ctx context.Context, command string, args []string) error
}

// ServiceQuery reports a service's current state.
type ServiceQuery interface {
	State(ctx context.Context, service string) (ServiceState, error)
}

// Runner executes Actions and verifies them independently of exit codes.
type Runner struct {
	Elevator     Elevator
	Query        ServiceQuery
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       zerolog.Logger
}

// Run performs a. It succeeds only when the service reaches a.Target before
// the timeout, whatever the elevated process reported.
func (r *Runner) Run(ctx context.Context, a Action) error {
	log := r.Logger.With().Str("service", a.Service).Str("target", string(a.Target)).Logger()
	log.Info().Str("command", a.Command).Msg(a.Description)

	if err := r.Elevator.Elevate(ctx, a.Command, a.Args); err != nil {
		if errors.Is(err, ErrElevationDenied) {
			return fmt.Errorf("%s: %w", a.Description, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Msg("elevated process reported failure; verifying state anyway")
	}
	return r.Await(ctx, a.Service, a.Target)
}

// Await polls the service until it satisfies target or the timeout elapses.
func (r *Runner) Await(ctx context.Context, service string, target ServiceState) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := StateUnknown
	for {
		state, err := r.Query.State(ctx, service)
		if err != nil {
			r.Logger.Debug().Err(err).Str("service", service).Msg("service query failed")
		} else {
			last = state
			if target.Satisfies(state) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s is %s after %s, want %s", ErrElevationVerificationTimeout, service, last, timeout, target)
		case <-ticker.C:
		}
	}
}
