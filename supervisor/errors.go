package supervisor

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotReady is returned by Config before the supervisor has reached Ready,
// or after it has stopped or failed.
var ErrNotReady = errors.New("backend is not ready")

// ErrProbeTimeout indicates the backend process kept running but never opened
// its port within the probe budget.
var ErrProbeTimeout = errors.New("backend did not open its port within the probe budget")

// SpawnError indicates the OS refused to create the backend process, e.g. a
// missing binary or a permission problem.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting backend %q: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProbeError indicates an unexpected OS-level error while probing the
// backend's port, as opposed to the refusals and timeouts expected during
// startup. It aborts the attempt's remaining poll budget.
type ProbeError struct {
	Addr string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing backend at %s: %v", e.Addr, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ExitError indicates the backend process terminated before its port started
// accepting connections.
type ExitError struct {
	State *os.ProcessState
	Err   error
}

func (e *ExitError) Error() string {
	if e.State != nil {
		return fmt.Sprintf("backend exited early: %s", e.State.String())
	}
	if e.Err != nil {
		return fmt.Sprintf("backend exited early: %v", e.Err)
	}
	return "backend exited early"
}

func (e *ExitError) Unwrap() error { return e.Err }
