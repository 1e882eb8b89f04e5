package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrAlreadyStarted is returned when StartUpdates is called on a running Source.
var ErrAlreadyStarted = errors.New("location updates already started")

// Source polls a Provider at a fixed interval and delivers fixes to an Observer.
type Source struct {
	provider    Provider
	interval    time.Duration
	readTimeout time.Duration
	clock       clockwork.Clock
	logger      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastFix *Fix

	// serializes one-shot reads with provider release
	releaseMu sync.Mutex
}

// NewSource creates a Source. A nil clock means the real clock.
func NewSource(provider Provider, interval, readTimeout time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{
		provider:    provider,
		interval:    interval,
		readTimeout: readTimeout,
		clock:       clock,
		logger:      logger,
	}
}

// StartUpdates begins polling. Fixes are delivered to observer one at a time, in arrival order,
// from a single goroutine, until StopUpdates is called.
func (s *Source) StartUpdates(observer Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	ticker := s.clock.NewTicker(s.interval)
	go s.run(ctx, ticker, observer, s.done)

	s.logger.Info().Dur("interval", s.interval).Msg("Location updates started")
	return nil
}

// StopUpdates stops polling and releases the provider. Calling it when not started is a no-op.
func (s *Source) StopUpdates() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.releaseMu.Lock()
	s.closeProvider()
	s.releaseMu.Unlock()
	s.logger.Info().Msg("Location updates stopped")
}

func (s *Source) closeProvider() {
	if err := s.provider.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close location provider")
	}
}

func (s *Source) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// LastKnownFix returns the most recent fix delivered by this Source. When none has been
// delivered yet it performs a single provider read. The bool is false when no fix is obtainable.
// A read made while updates are stopped releases the provider again afterwards.
func (s *Source) LastKnownFix(ctx context.Context) (Fix, bool, error) {
	s.mu.Lock()
	last := s.lastFix
	s.mu.Unlock()

	if last != nil {
		return *last, true, nil
	}

	s.releaseMu.Lock()
	fix, err := s.read(ctx)
	if !s.running() {
		s.closeProvider()
	}
	s.releaseMu.Unlock()

	if errors.Is(err, ErrLocationUnavailable) {
		return Fix{}, false, nil
	}
	if err != nil {
		return Fix{}, false, err
	}

	s.remember(fix)
	return fix, true, nil
}

func (s *Source) run(ctx context.Context, ticker clockwork.Ticker, observer Observer, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	available := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fix, err := s.read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, ErrLocationUnavailable) {
					s.logger.Error().Err(err).Msg("Failed to read location from provider")
				}
				if available {
					available = false
					observer.OnAvailability(false)
				}
				continue
			}

			if !available {
				available = true
				observer.OnAvailability(true)
			}
			s.remember(fix)
			observer.OnFix(fix)
		}
	}
}

func (s *Source) read(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	fix, err := s.provider.GetLocation(ctx)
	if err != nil {
		return Fix{}, err
	}
	fix.Timestamp = s.clock.Now()
	return fix, nil
}

func (s *Source) remember(fix Fix) {
	s.mu.Lock()
	s.lastFix = &fix
	s.mu.Unlock()
}
