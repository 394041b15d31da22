// Package storage resolves which persistence backend the process runs
// against. The choice is made once at startup: a reachable Postgres
// database (remote) or process memory seeded with demo data.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/apperr"
)

type Backend string

const (
	Remote Backend = "remote"
	Memory Backend = "memory"
)

// Resolution modes, mirroring STORAGE_BACKEND.
const (
	ModeAuto   = "auto"
	ModeRemote = "remote"
	ModeMemory = "memory"
)

// PingFunc checks that the backend answers.
type PingFunc func(ctx context.Context) error

// Probe runs connectivity checks against the remote backend through a
// circuit breaker so repeated failures stop hammering an unreachable host.
type Probe struct {
	cb      *gobreaker.CircuitBreaker
	ping    PingFunc
	timeout time.Duration
	logger  zerolog.Logger
}

// ProbeOption customises a Probe.
type ProbeOption func(*gobreaker.Settings)

// WithStateObserver registers a callback for breaker state transitions.
func WithStateObserver(fn func(name string, from, to gobreaker.State)) ProbeOption {
	return func(s *gobreaker.Settings) {
		prev := s.OnStateChange
		s.OnStateChange = func(name string, from, to gobreaker.State) {
			if prev != nil {
				prev(name, from, to)
			}
			fn(name, from, to)
		}
	}
}

func NewProbe(name string, ping PingFunc, timeout time.Duration, logger zerolog.Logger, opts ...ProbeOption) *Probe {
	p := &Probe{ping: ping, timeout: timeout, logger: logger}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("storage probe state changed")
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	p.cb = gobreaker.NewCircuitBreaker(settings)
	return p
}

// Check pings the backend within the probe timeout. Every failure,
// including an open breaker, is reported as a network error.
func (p *Probe) Check(ctx context.Context) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return nil, p.ping(ctx)
	})
	if err != nil {
		return apperr.Network("storage probe", err)
	}
	return nil
}

// State reports the breaker state ("closed", "open", "half-open").
func (p *Probe) State() string {
	return p.cb.State().String()
}

// ErrUnknownMode is returned by Resolve for modes other than auto, remote, memory.
var ErrUnknownMode = errors.New("unknown storage mode")

// Resolve picks the backend for mode. In auto mode an unreachable remote
// falls back to memory with a warning; in remote mode it is an error.
// A nil probe means no remote backend is configured.
func Resolve(ctx context.Context, mode string, probe *Probe, logger zerolog.Logger) (Backend, error) {
	switch mode {
	case ModeMemory:
		return Memory, nil
	case ModeRemote:
		if probe == nil {
			return "", fmt.Errorf("remote storage requested but no database is configured")
		}
		if err := probe.Check(ctx); err != nil {
			return "", err
		}
		return Remote, nil
	case ModeAuto:
		if probe == nil {
			logger.Info().Msg("no database configured, using in-memory storage")
			return Memory, nil
		}
		if err := probe.Check(ctx); err != nil {
			logger.Warn().Err(err).Msg("remote storage unreachable, falling back to in-memory storage")
			return Memory, nil
		}
		return Remote, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}
