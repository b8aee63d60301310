// Package supervisor runs the core's long-lived background Services
// under an Erlang/OTP-style one-for-one restart tree (spec.md §5 T5/T6
// threads, §10). cmd/obscore registers the three per-output StatsTimers.
//
// Grounded on the teacher's internal/supervisor/supervisor.go shape
// (Service interface, ServiceState, Config, Status reporting), rewired
// here to actually run services through github.com/thejerf/suture/v4
// instead of the teacher's hand-rolled restart loop — the teacher's
// go.mod required suture but its supervisor never imported it.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
)

// Service is anything the supervisor can run and restart.
type Service interface {
	Run(ctx context.Context) error
	Name() string
}

// Config configures the supervisor's restart policy.
type Config struct {
	// FailureThreshold is the number of restarts within FailureBackoff
	// suture tolerates before halting a service for good.
	FailureThreshold float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
	Logger           *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// serviceAdapter satisfies suture.Service by wrapping a Service.
type serviceAdapter struct{ svc Service }

func (a serviceAdapter) Serve(ctx context.Context) error { return a.svc.Run(ctx) }
func (a serviceAdapter) String() string                  { return a.svc.Name() }

// Supervisor wraps a suture.Supervisor, translating this package's
// Service/Config vocabulary to suture's.
type Supervisor struct {
	tree   *suture.Supervisor
	logger *slog.Logger
	tokens map[string]suture.ServiceToken
}

func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
		EventHook: func(e suture.Event) {
			if logger != nil {
				logger.Warn("supervisor event", "event", e.String())
			}
		},
	}
	return &Supervisor{
		tree:   suture.New("obscore", spec),
		logger: logger,
		tokens: make(map[string]suture.ServiceToken),
	}
}

// Add registers svc with the tree. If the tree is already running (Run
// has been called), the service starts immediately; otherwise it starts
// when Run is called.
func (s *Supervisor) Add(svc Service) {
	token := s.tree.Add(serviceAdapter{svc: svc})
	s.tokens[svc.Name()] = token
}

// Remove stops and deregisters a previously Add-ed service by name.
func (s *Supervisor) Remove(name string) error {
	token, ok := s.tokens[name]
	if !ok {
		return nil
	}
	delete(s.tokens, name)
	return s.tree.Remove(token)
}

// Run blocks, running the supervision tree until ctx is cancelled, then
// waits (up to ShutdownTimeout, enforced by suture's Spec.Timeout) for
// services to exit.
func (s *Supervisor) Run(ctx context.Context) error {
	return s.tree.Serve(ctx)
}

// ServiceCount returns the number of currently registered services.
func (s *Supervisor) ServiceCount() int {
	return len(s.tokens)
}

// Services returns a copy of the suture ServiceToken of every registered
// service, keyed by name.
func (s *Supervisor) Services() map[string]suture.ServiceToken {
	out := make(map[string]suture.ServiceToken, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out
}
