package supervisor

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// waitForReady polls the backend's port until it accepts a TCP connection.
// Each iteration first checks whether the process has already exited; there is
// no point polling the port of a dead process. A successful connect is closed
// immediately: this is a liveness probe, not a handshake.
//
// Connection-refused and timeout errors are expected while the backend is
// still starting and keep the loop going. Any other dial error is unexpected
// and aborts the attempt without exhausting the budget.
func (s *Supervisor) waitForReady(proc *backendProc, port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	for i := 0; i < s.probeIterations; i++ {
		select {
		case <-proc.exited:
			return &ExitError{State: proc.cmd.ProcessState, Err: proc.waitErr}
		default:
		}

		iterStart := time.Now()
		conn, err := net.DialTimeout("tcp", addr, s.probeInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if !dialErrorRetryable(err) {
			return &ProbeError{Addr: addr, Err: err}
		}

		// One iteration spends probeInterval total: a dial that timed out
		// already consumed its share of the budget.
		if remaining := s.probeInterval - time.Since(iterStart); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	return ErrProbeTimeout
}

func dialErrorRetryable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
