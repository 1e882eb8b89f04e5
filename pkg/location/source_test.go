package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns the queued results in order, then ErrLocationUnavailable.
type scriptedProvider struct {
	mu      sync.Mutex
	results []providerResult
	closed  int
	reads   chan struct{}
}

type providerResult struct {
	fix Fix
	err error
}

func (p *scriptedProvider) GetLocation(context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reads != nil {
		defer func() { p.reads <- struct{}{} }()
	}
	if len(p.results) == 0 {
		return Fix{}, ErrLocationUnavailable
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r.fix, r.err
}

func (p *scriptedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *scriptedProvider) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type recordingObserver struct {
	fixes        chan Fix
	availability chan bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		fixes:        make(chan Fix, 16),
		availability: make(chan bool, 16),
	}
}

func (o *recordingObserver) OnFix(fix Fix)                 { o.fixes <- fix }
func (o *recordingObserver) OnAvailability(available bool) { o.availability <- available }

func fixAt(lat, lon float64) Fix {
	return Fix{Coordinate: Coordinate{Latitude: lat, Longitude: lon}}
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSource_DeliversFixesInOrder(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{
		{fix: fixAt(1, 1)},
		{fix: fixAt(2, 2)},
	}}
	clock := clockwork.NewFakeClock()
	source := NewSource(provider, 5*time.Second, time.Second, clock, zerolog.Nop())
	observer := newRecordingObserver()

	require.NoError(t, source.StartUpdates(observer))
	defer source.StopUpdates()

	clock.Advance(5 * time.Second)
	first := receive(t, observer.fixes)
	assert.Equal(t, 1.0, first.Latitude)
	assert.Equal(t, clock.Now(), first.Timestamp)

	clock.Advance(5 * time.Second)
	second := receive(t, observer.fixes)
	assert.Equal(t, 2.0, second.Latitude)

	last, ok, err := source.LastKnownFix(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second, last)
}

func TestSource_ReportsAvailabilityTransitions(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{
		{err: ErrLocationUnavailable},
		{err: errors.New("serial glitch")},
		{fix: fixAt(3, 3)},
	}, reads: make(chan struct{}, 16)}
	clock := clockwork.NewFakeClock()
	source := NewSource(provider, time.Second, time.Second, clock, zerolog.Nop())
	observer := newRecordingObserver()

	require.NoError(t, source.StartUpdates(observer))
	defer source.StopUpdates()

	clock.Advance(time.Second)
	receive(t, provider.reads)
	assert.False(t, receive(t, observer.availability))

	clock.Advance(time.Second)
	receive(t, provider.reads)
	clock.Advance(time.Second)
	assert.True(t, receive(t, observer.availability))
	assert.Equal(t, 3.0, receive(t, observer.fixes).Latitude)

	// A single unavailable transition is reported even though two reads failed.
	assert.Empty(t, observer.availability)
}

func TestSource_StartTwice(t *testing.T) {
	source := NewSource(&scriptedProvider{}, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())
	observer := newRecordingObserver()

	require.NoError(t, source.StartUpdates(observer))
	assert.ErrorIs(t, source.StartUpdates(observer), ErrAlreadyStarted)
	source.StopUpdates()
}

func TestSource_StopIsIdempotent(t *testing.T) {
	provider := &scriptedProvider{}
	source := NewSource(provider, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	source.StopUpdates()
	assert.Equal(t, 0, provider.closeCount())

	require.NoError(t, source.StartUpdates(newRecordingObserver()))
	source.StopUpdates()
	source.StopUpdates()
	assert.Equal(t, 1, provider.closeCount())

	// Restart after stop is allowed.
	require.NoError(t, source.StartUpdates(newRecordingObserver()))
	source.StopUpdates()
	assert.Equal(t, 2, provider.closeCount())
}

func TestSource_LastKnownFix_OneShotRead(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{{fix: fixAt(9, 9)}}}
	source := NewSource(provider, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	fix, ok, err := source.LastKnownFix(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9.0, fix.Longitude)

	// Cached afterwards, provider is not consulted again.
	fix, ok, err = source.LastKnownFix(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9.0, fix.Longitude)
}

func TestSource_LastKnownFix_ReleasesProviderWhileStopped(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{{fix: fixAt(1, 2)}}}
	source := NewSource(provider, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	require.NoError(t, source.StartUpdates(newRecordingObserver()))
	source.StopUpdates()
	require.Equal(t, 1, provider.closeCount())

	// A late one-shot read after stop must not leave the provider open.
	fix, ok, err := source.LastKnownFix(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, fix.Longitude)
	assert.Equal(t, 2, provider.closeCount())
}

func TestSource_LastKnownFix_KeepsProviderWhileRunning(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{{fix: fixAt(1, 2)}}}
	source := NewSource(provider, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	require.NoError(t, source.StartUpdates(newRecordingObserver()))
	defer source.StopUpdates()

	_, ok, err := source.LastKnownFix(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, provider.closeCount())
}

func TestSource_LastKnownFix_NoneAvailable(t *testing.T) {
	source := NewSource(&scriptedProvider{}, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	_, ok, err := source.LastKnownFix(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSource_LastKnownFix_ProviderError(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{{err: errors.New("device busy")}}}
	source := NewSource(provider, time.Second, time.Second, clockwork.NewFakeClock(), zerolog.Nop())

	_, ok, err := source.LastKnownFix(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}
