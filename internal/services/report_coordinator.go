package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/location-reporter/internal/constants"
	"github.com/benmeehan/location-reporter/internal/models"
	"github.com/benmeehan/location-reporter/internal/observability"
	"github.com/benmeehan/location-reporter/internal/utils"
	"github.com/benmeehan/location-reporter/pkg/geocode"
	"github.com/benmeehan/location-reporter/pkg/location"
	"github.com/benmeehan/location-reporter/pkg/reporting"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrCoordinatorStopped is returned by operations on a stopped ReportCoordinator.
var ErrCoordinatorStopped = errors.New("report coordinator is stopped")

// LocationSource delivers location fixes to an observer.
type LocationSource interface {
	StartUpdates(observer location.Observer) error
	StopUpdates()
	LastKnownFix(ctx context.Context) (location.Fix, bool, error)
}

// ReportingClient uploads a single report.
type ReportingClient interface {
	Submit(ctx context.Context, req reporting.ReportRequest) (reporting.ResponseSuccess, error)
}

// Observer receives coordinator events. All callbacks run on the coordinator's dispatch
// goroutine; they must return quickly and must not call back into the coordinator.
type Observer interface {
	OnFix(fix location.Fix)
	OnOutcome(outcome models.ReportOutcome)
	OnNotice(notice models.Notice)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Fix     func(location.Fix)
	Outcome func(models.ReportOutcome)
	Notice  func(models.Notice)
}

func (f ObserverFuncs) OnFix(fix location.Fix) {
	if f.Fix != nil {
		f.Fix(fix)
	}
}

func (f ObserverFuncs) OnOutcome(outcome models.ReportOutcome) {
	if f.Outcome != nil {
		f.Outcome(outcome)
	}
}

func (f ObserverFuncs) OnNotice(notice models.Notice) {
	if f.Notice != nil {
		f.Notice(notice)
	}
}

// CoordinatorConfig holds the timeouts and concurrency of the report pipeline.
type CoordinatorConfig struct {
	ResolveTimeout   time.Duration
	SubmitTimeout    time.Duration
	LastKnownTimeout time.Duration
	Workers          int
}

// CoordinatorState is a consistent snapshot of the coordinator state.
type CoordinatorState struct {
	Updating      bool
	CurrentFix    *location.Fix
	LatestOutcome *models.ReportOutcome
}

// ReportCoordinator keeps the most recent location fix and turns report requests into
// resolve and submit pipelines. currentFix, latestOutcome and the observer set are owned by
// a single dispatch goroutine; every other goroutine posts closures to it.
type ReportCoordinator struct {
	source     LocationSource
	permission location.PermissionChecker
	resolver   geocode.Resolver
	client     ReportingClient
	metrics    *observability.Metrics
	clock      clockwork.Clock
	logger     zerolog.Logger
	config     CoordinatorConfig

	pool *utils.WorkerPool

	loopMu  sync.RWMutex
	running bool
	actions chan func()
	done    chan struct{}

	updatesMu sync.Mutex
	updating  bool

	lifecycleMu sync.Mutex
	stopped     bool

	// dispatch goroutine only
	currentFix     *location.Fix
	latestOutcome  *models.ReportOutcome
	observers      map[uint64]Observer
	nextObserverID uint64
}

// NewReportCoordinator creates a coordinator and starts its dispatch goroutine and worker pool.
// A nil clock means the real clock.
func NewReportCoordinator(source LocationSource, permission location.PermissionChecker, resolver geocode.Resolver,
	client ReportingClient, config CoordinatorConfig, metrics *observability.Metrics, clock clockwork.Clock,
	logger zerolog.Logger) *ReportCoordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = constants.DefaultResolveTimeout
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = constants.DefaultSubmitTimeout
	}
	if config.LastKnownTimeout <= 0 {
		config.LastKnownTimeout = constants.DefaultReadTimeout
	}
	if config.Workers <= 0 {
		config.Workers = constants.DefaultReportWorkers
	}

	c := &ReportCoordinator{
		source:     source,
		permission: permission,
		resolver:   resolver,
		client:     client,
		metrics:    metrics,
		clock:      clock,
		logger:     logger,
		config:     config,
		pool:       utils.NewWorkerPool(config.Workers, config.Workers*4, logger),
		running:    true,
		actions:    make(chan func(), 64),
		done:       make(chan struct{}),
		observers:  make(map[uint64]Observer),
	}
	go c.dispatch()
	return c
}

// Start begins location updates.
func (c *ReportCoordinator) Start() error {
	c.lifecycleMu.Lock()
	stopped := c.stopped
	c.lifecycleMu.Unlock()
	if stopped {
		return ErrCoordinatorStopped
	}

	if err := c.BeginUpdates(); err != nil {
		if !errors.Is(err, location.ErrPermissionDenied) {
			return err
		}
		c.logger.Info().Msg("ReportCoordinator started without location permission")
		return nil
	}
	c.logger.Info().Msg("ReportCoordinator started")
	return nil
}

// Stop ends location updates, releases every observer, waits for in-flight reports and
// ends the dispatch goroutine. In-flight reports are not cancelled.
func (c *ReportCoordinator) Stop() error {
	c.lifecycleMu.Lock()
	if c.stopped {
		c.lifecycleMu.Unlock()
		c.logger.Warn().Msg("ReportCoordinator is not running")
		return errors.New("report coordinator is not running")
	}
	c.stopped = true
	c.lifecycleMu.Unlock()

	c.EndUpdates()
	c.call(func() {
		clear(c.observers)
	})
	c.pool.Shutdown()

	c.loopMu.Lock()
	c.running = false
	close(c.actions)
	c.loopMu.Unlock()
	<-c.done

	c.logger.Info().Msg("ReportCoordinator stopped")
	return nil
}

// OnFix stores fix as the current fix and notifies observers.
func (c *ReportCoordinator) OnFix(fix location.Fix) {
	c.post(func() {
		c.applyFix(fix)
	})
}

// OnAvailability logs availability changes of the location source.
func (c *ReportCoordinator) OnAvailability(available bool) {
	if available {
		c.logger.Info().Msg("Location is available")
	} else {
		c.logger.Info().Msg("Location is unavailable")
	}
}

// BeginUpdates starts the location source after a permission check. Without permission it
// publishes a permission notice and returns an error wrapping location.ErrPermissionDenied.
// The last known fix is queried in the background.
func (c *ReportCoordinator) BeginUpdates() error {
	if err := c.permission.CheckPermission(); err != nil {
		c.logger.Warn().Err(err).Msg("Location permission required")
		c.post(func() {
			c.notify(constants.NoticePermissionRequired, "Location permission required")
		})
		if !errors.Is(err, location.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", location.ErrPermissionDenied, err)
		}
		return err
	}

	c.updatesMu.Lock()
	defer c.updatesMu.Unlock()

	if c.updating {
		c.logger.Debug().Msg("Location updates already running")
		return nil
	}

	if err := c.source.StartUpdates(c); err != nil {
		if !errors.Is(err, location.ErrAlreadyStarted) {
			c.logger.Error().Err(err).Msg("Failed to start location updates")
			return err
		}
		c.logger.Warn().Err(err).Msg("Location source was already started")
	}
	c.updating = true
	c.metrics.UpdatesActive.Set(1)

	if err := c.pool.Submit(c.queryLastKnownFix); err != nil {
		c.logger.Error().Err(err).Msg("Failed to schedule last known location query")
	}
	return nil
}

// EndUpdates stops the location source. Calling it while updates are stopped is a no-op.
func (c *ReportCoordinator) EndUpdates() {
	c.updatesMu.Lock()
	defer c.updatesMu.Unlock()

	if !c.updating {
		return
	}
	c.source.StopUpdates()
	c.updating = false
	c.metrics.UpdatesActive.Set(0)
}

// ReportCurrentLocation resolves the current fix to an address and submits it in the
// background. It returns false, without side effects, when no fix is known yet.
// Overlapping reports run independently and the last one to complete sets the latest outcome.
func (c *ReportCoordinator) ReportCurrentLocation() bool {
	fix, ok := c.CurrentFix()
	if !ok {
		c.logger.Debug().Msg("No location fix yet, skipping report")
		c.metrics.ReportsSkipped.Inc()
		return false
	}

	if err := c.pool.Submit(func() { c.runReport(fix) }); err != nil {
		c.logger.Error().Err(err).Msg("Failed to schedule location report")
		return false
	}
	return true
}

// Subscribe registers observer and returns a function that removes it again.
func (c *ReportCoordinator) Subscribe(observer Observer) (unsubscribe func()) {
	var id uint64
	ok := c.call(func() {
		c.nextObserverID++
		id = c.nextObserverID
		c.observers[id] = observer
	})
	if !ok {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.post(func() {
				delete(c.observers, id)
			})
		})
	}
}

// CurrentFix returns the most recent fix.
func (c *ReportCoordinator) CurrentFix() (location.Fix, bool) {
	var (
		fix location.Fix
		ok  bool
	)
	c.call(func() {
		if c.currentFix != nil {
			fix, ok = *c.currentFix, true
		}
	})
	return fix, ok
}

// LatestOutcome returns the outcome of the most recently completed report.
func (c *ReportCoordinator) LatestOutcome() (models.ReportOutcome, bool) {
	var (
		outcome models.ReportOutcome
		ok      bool
	)
	c.call(func() {
		if c.latestOutcome != nil {
			outcome, ok = *c.latestOutcome, true
		}
	})
	return outcome, ok
}

// Snapshot returns the current fix, latest outcome and update state.
func (c *ReportCoordinator) Snapshot() CoordinatorState {
	c.updatesMu.Lock()
	state := CoordinatorState{Updating: c.updating}
	c.updatesMu.Unlock()

	c.call(func() {
		if c.currentFix != nil {
			fix := *c.currentFix
			state.CurrentFix = &fix
		}
		if c.latestOutcome != nil {
			outcome := *c.latestOutcome
			state.LatestOutcome = &outcome
		}
	})
	return state
}

// CheckReadiness reports whether the dispatch goroutine is serving requests.
func (c *ReportCoordinator) CheckReadiness(ctx context.Context) error {
	ready := make(chan struct{})
	if !c.post(func() { close(ready) }) {
		return ErrCoordinatorStopped
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ReportCoordinator) queryLastKnownFix() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.LastKnownTimeout)
	defer cancel()

	fix, ok, err := c.source.LastKnownFix(ctx)
	switch {
	case err != nil:
		c.logger.Error().Err(err).Msg("Failed to get last known location")
	case !ok:
		c.post(func() {
			c.notify(constants.NoticeLastLocationUnavailable, "Unable to get last known location")
		})
	default:
		c.OnFix(fix)
	}
}

func (c *ReportCoordinator) runReport(fix location.Fix) {
	requestID := uuid.NewString()
	logger := c.logger.With().Str("request_id", requestID).Logger()
	c.metrics.ReportsStarted.Inc()

	candidates, err := c.resolve(fix.Coordinate)
	if err != nil {
		c.metrics.ResolutionFailures.WithLabelValues("error").Inc()
		logger.Error().Err(err).
			Float64("latitude", fix.Latitude).
			Float64("longitude", fix.Longitude).
			Msg("Failed to resolve address, report aborted")
		return
	}
	if len(candidates) == 0 {
		c.metrics.ResolutionFailures.WithLabelValues("empty").Inc()
		logger.Warn().Err(geocode.ErrNoCandidates).
			Float64("latitude", fix.Latitude).
			Float64("longitude", fix.Longitude).
			Msg("No address found, report aborted")
		return
	}

	address := candidates[0]
	logger.Info().
		Str("postal_code", address.PostalCode).
		Str("locality", address.Locality).
		Str("admin_area", address.AdminArea).
		Str("country", address.CountryName).
		Msg("Address resolved")

	req := reporting.ReportRequest{
		Address:      address.FormattedLine,
		Latitude:     reporting.FormatCoordinate(fix.Latitude),
		Longitude:    reporting.FormatCoordinate(fix.Longitude),
		LocationType: constants.LocationTypeUser,
	}
	outcome := c.submit(requestID, req, logger)

	c.post(func() {
		c.applyOutcome(outcome)
	})
}

func (c *ReportCoordinator) resolve(coordinate location.Coordinate) ([]geocode.AddressCandidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.ResolveTimeout)
	defer cancel()

	start := c.clock.Now()
	candidates, err := c.resolver.Resolve(ctx, coordinate)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case len(candidates) == 0:
		outcome = "empty"
	}
	c.metrics.GeocodeDuration.WithLabelValues(outcome).Observe(c.clock.Since(start).Seconds())
	return candidates, err
}

func (c *ReportCoordinator) submit(requestID string, req reporting.ReportRequest, logger zerolog.Logger) models.ReportOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.SubmitTimeout)
	defer cancel()

	start := c.clock.Now()
	resp, err := c.client.Submit(ctx, req)
	c.metrics.SubmitDuration.Observe(c.clock.Since(start).Seconds())

	if err != nil {
		logger.Error().Err(err).Str("address", req.Address).Msg("Failed to submit location report")
		return models.NewFailureOutcome(requestID, req, err, c.clock.Now())
	}
	logger.Info().Int("status", resp.Status).Str("message", resp.Message).Msg("Location report submitted")
	return models.NewSuccessOutcome(requestID, req, resp, c.clock.Now())
}

func (c *ReportCoordinator) applyFix(fix location.Fix) {
	c.currentFix = &fix
	c.metrics.FixesReceived.Inc()
	for _, o := range c.observers {
		o.OnFix(fix)
	}
}

func (c *ReportCoordinator) applyOutcome(outcome models.ReportOutcome) {
	c.latestOutcome = &outcome
	if outcome.Succeeded() {
		c.metrics.ReportOutcomes.WithLabelValues(constants.OutcomeStatusSuccess).Inc()
	} else {
		c.metrics.ReportOutcomes.WithLabelValues(constants.OutcomeStatusFailure).Inc()
	}
	for _, o := range c.observers {
		o.OnOutcome(outcome)
	}
}

func (c *ReportCoordinator) notify(kind constants.NoticeKind, message string) {
	notice := models.Notice{Kind: kind, Message: message, Timestamp: c.clock.Now()}
	for _, o := range c.observers {
		o.OnNotice(notice)
	}
}

// post queues fn on the dispatch goroutine. It returns false once the coordinator has stopped.
// It must not be called from the dispatch goroutine.
func (c *ReportCoordinator) post(fn func()) bool {
	c.loopMu.RLock()
	defer c.loopMu.RUnlock()

	if !c.running {
		return false
	}
	c.actions <- fn
	return true
}

// call runs fn on the dispatch goroutine and waits for it.
func (c *ReportCoordinator) call(fn func()) bool {
	finished := make(chan struct{})
	if !c.post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

func (c *ReportCoordinator) dispatch() {
	defer close(c.done)
	for fn := range c.actions {
		c.execute(fn)
	}
}

func (c *ReportCoordinator) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Coordinator action panicked")
		}
	}()
	fn()
}
