// Package availability turns calendar month requests into backend lookups
// and routes exactly one result per live request back to the caller.
package availability

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

var availabilityTracer = otel.Tracer("booking.internal.availability")

// Day is one calendar date with its bookable slots. Slot descriptors are
// opaque and forwarded to the calendar widget verbatim.
type Day struct {
	Date  string            `json:"date"`
	Slots []json.RawMessage `json:"slots"`
}

// Backend performs the availability lookup.
type Backend interface {
	GetAvailability(ctx context.Context, serviceID, rangeStartISO, rangeEndISO, timeZone string) ([]Day, error)
}

// FetchError is a failed lookup. Message is safe to show to the user.
type FetchError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return "availability: " + e.Message + ": " + e.Err.Error()
	}
	return "availability: " + e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is delivered once per refresh that is still the latest when its
// lookup completes. Exactly one of Days and Err is meaningful.
type Result struct {
	Epoch    uint64
	Range    Range
	TimeZone string
	Days     []Day
	Err      *FetchError
}

// Executor runs fn on the owner's serialized event loop.
type Executor func(fn func())

// Coordinator issues availability lookups for one calendar widget. Each
// refresh takes a new epoch; results from older epochs are discarded so a
// slow response cannot overwrite a newer month.
type Coordinator struct {
	backend Backend
	exec    Executor
	logger  *logging.Logger
	metrics *metrics.FlowMetrics
	now     func() time.Time

	epoch atomic.Uint64
}

// NewCoordinator creates a coordinator. exec defaults to running deliveries
// on the lookup goroutine.
func NewCoordinator(backend Backend, exec Executor, m *metrics.FlowMetrics, logger *logging.Logger) *Coordinator {
	if backend == nil {
		panic("availability: backend required")
	}
	if exec == nil {
		exec = func(fn func()) { fn() }
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		backend: backend,
		exec:    exec,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Latest returns the most recently issued epoch.
func (c *Coordinator) Latest() uint64 {
	return c.epoch.Load()
}

// Refresh looks up availability for the month containing anchor. The result
// reaches deliver through the executor, never through the return value. It
// returns false without issuing a lookup when serviceID is empty.
func (c *Coordinator) Refresh(ctx context.Context, serviceID string, anchor time.Time, timeZone string, deliver func(Result)) (uint64, bool) {
	if serviceID == "" {
		c.logger.Warn("availability: refresh skipped, no service id")
		return 0, false
	}
	rng := MonthRange(anchor, servicectx.LoadLocation(timeZone))
	epoch := c.epoch.Add(1)

	go c.fetch(ctx, epoch, serviceID, rng, timeZone, deliver)
	return epoch, true
}

func (c *Coordinator) fetch(ctx context.Context, epoch uint64, serviceID string, rng Range, timeZone string, deliver func(Result)) {
	ctx, span := availabilityTracer.Start(ctx, "availability.refresh")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.service_id", serviceID),
		attribute.String("booking.range_start", rng.StartISO()),
		attribute.Int64("booking.epoch", int64(epoch)),
	)

	started := c.now()
	days, err := c.backend.GetAvailability(ctx, serviceID, rng.StartISO(), rng.EndISO(), timeZone)
	elapsed := c.now().Sub(started).Seconds()

	res := Result{Epoch: epoch, Range: rng, TimeZone: timeZone}
	if err != nil {
		span.RecordError(err)
		res.Err = asFetchError(err)
	} else {
		if days == nil {
			days = []Day{}
		}
		res.Days = days
	}

	c.exec(func() {
		if latest := c.epoch.Load(); epoch != latest {
			c.metrics.ObserveAvailability("stale", elapsed)
			c.logger.Debug("availability: discarding stale result",
				"service_id", serviceID,
				"epoch", epoch,
				"latest", latest,
				"range_start", rng.StartISO(),
			)
			return
		}
		if res.Err != nil {
			c.metrics.ObserveAvailability("error", elapsed)
			c.logger.Error("availability: lookup failed",
				"service_id", serviceID,
				"range_start", rng.StartISO(),
				"error", res.Err,
			)
		} else {
			c.metrics.ObserveAvailability("success", elapsed)
		}
		deliver(res)
	})
}

func asFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	msg := err.Error()
	if msg == "" {
		msg = "availability lookup failed"
	}
	return &FetchError{Message: msg, Err: err}
}
