// Package supervisor owns the lifecycle of the backend server process: it
// allocates a port, generates the shared bearer token, spawns the backend,
// waits for its TCP listener to accept connections, and guarantees the
// process is killed on shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/echosmith/echosmith/internal/token"
	"github.com/echosmith/echosmith/launch"
)

// Environment variables carrying the launch contract to the backend process.
const (
	EnvPort  = "ECHOSMITH_PORT"
	EnvToken = "ECHOSMITH_TOKEN"
)

// State is the supervisor's lifecycle state.
type State int

const (
	Idle State = iota
	Spawning
	AwaitingReady
	Ready
	Terminating
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Spawning:
		return "spawning"
	case AwaitingReady:
		return "awaiting-ready"
	case Ready:
		return "ready"
	case Terminating:
		return "terminating"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Config is the loopback contract handed to the shell once the backend is
// ready.
type Config struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// backendProc owns a spawned backend process. A goroutine reaps the process
// and closes exited, so exit status checks never block.
type backendProc struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
}

// kill terminates the process and waits for it to be reaped. Kill errors are
// ignored: the process may already be gone, and termination is best-effort.
func (p *backendProc) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.exited
}

// Supervisor launches the backend and holds its process handle, port and
// token for the lifetime of the shell. The process handle is shared between
// the startup path and the shell's exit-request callback, so it is guarded by
// a mutex held only for point-in-time take/replace operations, never across
// the blocking spawn or poll calls.
type Supervisor struct {
	logger   *zap.SugaredLogger
	resolver launch.Resolver

	maxAttempts     int
	backoff         time.Duration
	probeInterval   time.Duration
	probeIterations int
	allocatePort    PortAllocator

	mut   sync.Mutex
	proc  *backendProc
	state State
	port  int
	token string
}

type Option func(s *Supervisor)

func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l.Named("supervisor").Sugar()
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Supervisor) {
		s.maxAttempts = n
	}
}

func WithBackoff(d time.Duration) Option {
	return func(s *Supervisor) {
		s.backoff = d
	}
}

func WithProbeInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.probeInterval = d
	}
}

func WithProbeIterations(n int) Option {
	return func(s *Supervisor) {
		s.probeIterations = n
	}
}

// WithPortAllocator overrides the mode-aware default port policy.
func WithPortAllocator(f PortAllocator) Option {
	return func(s *Supervisor) {
		s.allocatePort = f
	}
}

// New constructs a supervisor for the given runtime mode. The resolver is
// consulted once per Start to determine the backend command.
func New(mode launch.Mode, resolver launch.Resolver, opts ...Option) (*Supervisor, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Supervisor{
		logger:          logger.Named("supervisor").Sugar(),
		resolver:        resolver,
		maxAttempts:     5,
		backoff:         200 * time.Millisecond,
		probeInterval:   150 * time.Millisecond,
		probeIterations: 80,
		allocatePort:    defaultPortAllocator(mode),
		state:           Idle,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.state
}

// Config returns the backend's loopback URL and bearer token. It is only
// valid once the supervisor is Ready.
func (s *Supervisor) Config() (Config, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.state != Ready {
		return Config{}, ErrNotReady
	}
	return Config{
		URL:   fmt.Sprintf("http://127.0.0.1:%d", s.port),
		Token: s.token,
	}, nil
}

// Start launches the backend and blocks until it is accepting connections or
// all attempts are exhausted. The shell must not present its interactive
// surface before Start returns.
//
// A failure to resolve the launch spec is fatal immediately: retrying cannot
// change a missing or misconfigured installation. Spawn failures, early
// exits and probe timeouts are retried up to the attempt budget, each retry
// with a freshly allocated port so a deterministic collision is not repeated.
// Only the last recorded error is surfaced when the budget is exhausted.
func (s *Supervisor) Start(ctx context.Context) (Config, error) {
	tok, err := token.Generate()
	if err != nil {
		s.setState(Failed)
		return Config{}, fmt.Errorf("generating backend token: %w", err)
	}
	s.mut.Lock()
	s.token = tok
	s.mut.Unlock()

	spec, err := s.resolver.Resolve()
	if err != nil {
		s.setState(Failed)
		return Config{}, fmt.Errorf("resolving backend launch spec: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.setState(Failed)
				return Config{}, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		s.setState(Spawning)
		port := s.allocatePort(attempt)
		s.logger.Debugf("launching backend (attempt %d): %s %v on port %d", attempt+1, spec.Program, spec.Args, port)

		proc, err := s.spawn(spec, port, tok)
		if err != nil {
			s.logger.Errorf("backend spawn failed (attempt %d): %s", attempt+1, err)
			lastErr = err
			continue
		}

		s.setState(AwaitingReady)
		err = s.waitForReady(proc, port)
		if err == nil {
			s.mut.Lock()
			s.proc = proc
			s.port = port
			s.state = Ready
			s.mut.Unlock()
			s.logger.Infof("backend ready on port %d (pid %d)", port, proc.cmd.Process.Pid)
			return Config{
				URL:   fmt.Sprintf("http://127.0.0.1:%d", port),
				Token: tok,
			}, nil
		}

		s.logger.Errorf("backend did not become ready on port %d (attempt %d): %s", port, attempt+1, err)
		proc.kill()
		lastErr = err
	}

	s.setState(Failed)
	if lastErr == nil {
		lastErr = errors.New("unable to start backend")
	}
	return Config{}, fmt.Errorf("starting backend after %d attempts: %w", s.maxAttempts, lastErr)
}

// Stop kills the owned backend process, if any. It is idempotent: calling it
// repeatedly, or without a successful Start, is safe. Kill failures are
// swallowed; the process may already be gone.
func (s *Supervisor) Stop() {
	s.mut.Lock()
	proc := s.proc
	s.proc = nil
	if proc != nil {
		s.state = Terminating
	}
	s.mut.Unlock()

	if proc != nil {
		s.logger.Infof("stopping backend (pid %d)", proc.cmd.Process.Pid)
		proc.kill()
	}

	s.setState(Stopped)
}

func (s *Supervisor) setState(st State) {
	s.mut.Lock()
	s.state = st
	s.mut.Unlock()
}

func (s *Supervisor) spawn(spec launch.Spec, port int, tok string) (*backendProc, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", EnvPort, port),
		fmt.Sprintf("%s=%s", EnvToken, tok),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Program: spec.Program, Err: err}
	}

	p := &backendProc{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}
