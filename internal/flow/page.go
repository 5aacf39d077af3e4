// Package flow runs booking page sessions. A page owns one booking draft,
// one router per widget and one availability coordinator, and executes all
// widget handling on a single event loop.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/paymentchoice"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/internal/submission"
	"github.com/wolfman30/medspa-booking-flow/internal/widget"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// Page kinds.
const (
	KindService = "service"
	KindBooking = "booking"
)

// Page statuses.
const (
	StatusOpen       = "open"
	StatusSubmitting = "submitting"
	StatusConfirmed  = "confirmed"
	StatusError      = "error"
)

const submitTimeout = 30 * time.Second

// ErrPageClosed is returned for operations on a closed page.
var ErrPageClosed = errors.New("flow: page closed")

// WidgetStatus describes one widget slot.
type WidgetStatus struct {
	Mounted bool         `json:"mounted"`
	State   widget.State `json:"state"`
}

// Snapshot is a read-only view of a page.
type Snapshot struct {
	ID               string                  `json:"id"`
	Kind             string                  `json:"kind"`
	Strategy         string                  `json:"strategy"`
	Status           string                  `json:"status"`
	Error            string                  `json:"error,omitempty"`
	Draft            draft.BookingDraft      `json:"draft"`
	CombinedTotal    float64                 `json:"combinedTotal"`
	RemainingBalance float64                 `json:"remainingBalance"`
	PaymentRecord    string                  `json:"paymentRecord,omitempty"`
	BookingID        string                  `json:"bookingId,omitempty"`
	Redirect         string                  `json:"redirect,omitempty"`
	Widgets          map[string]WidgetStatus `json:"widgets"`
}

// Page is one open booking page session.
type Page struct {
	id         string
	kind       string
	strategy   string
	sessionKey string
	skus       servicectx.ProductSKUs
	choice     handoff.ChoiceResult

	store      *draft.Store
	calSlot    *widget.Slot
	addSlot    *widget.Slot
	calendar   *widget.Router
	addons     *widget.Router
	coord      *availability.Coordinator
	negotiator *paymentchoice.Negotiator
	submitter  submission.Submitter

	metrics *metrics.FlowMetrics
	logger  *logging.Logger
	now     func() time.Time

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	status       string
	lastErr      string
	receipt      submission.Receipt
	lastActivity time.Time
	closeOnce    sync.Once
}

type pageConfig struct {
	id         string
	kind       string
	strategy   string
	sessionKey string
	service    servicectx.ServiceContext
	skus       servicectx.ProductSKUs
	choice     handoff.ChoiceResult
	payment    *draft.PaymentChoice
	backend    availability.Backend
	negotiator *paymentchoice.Negotiator
	submitter  submission.Submitter
	metrics    *metrics.FlowMetrics
	logger     *logging.Logger
}

func newPage(cfg pageConfig) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cfg.logger.With("page_id", cfg.id, "service_id", cfg.service.ServiceID)

	p := &Page{
		id:           cfg.id,
		kind:         cfg.kind,
		strategy:     cfg.strategy,
		sessionKey:   cfg.sessionKey,
		skus:         cfg.skus,
		choice:       cfg.choice,
		store:        draft.NewStore(cfg.service),
		calSlot:      &widget.Slot{},
		addSlot:      &widget.Slot{},
		negotiator:   cfg.negotiator,
		submitter:    cfg.submitter,
		metrics:      cfg.metrics,
		logger:       logger,
		now:          time.Now,
		events:       make(chan func(), 64),
		ctx:          ctx,
		cancel:       cancel,
		status:       StatusOpen,
		lastActivity: time.Now(),
	}
	if cfg.payment != nil {
		p.store.SetPayment(*cfg.payment)
	}

	p.coord = availability.NewCoordinator(cfg.backend, p.enqueue, cfg.metrics, logger)
	hooks := widget.Hooks{
		RefreshMonth: p.refreshMonth,
		Submit:       p.submit,
	}
	p.calendar = widget.NewRouter(widget.KindCalendar, p.calSlot, p.addSlot, p.store, hooks, cfg.metrics, logger)
	p.addons = widget.NewRouter(widget.KindAddons, p.addSlot, p.calSlot, p.store, hooks, cfg.metrics, logger)

	go p.run()
	cfg.metrics.PageOpened()
	return p
}

// ID returns the page id.
func (p *Page) ID() string { return p.id }

// Store returns the page's draft store.
func (p *Page) Store() *draft.Store { return p.store }

func (p *Page) run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.events:
			fn()
		}
	}
}

// enqueue schedules fn on the event loop. It is the availability executor,
// so it must not block once the page is closed.
func (p *Page) enqueue(fn func()) {
	select {
	case p.events <- fn:
	case <-p.ctx.Done():
	}
}

// Do runs fn on the event loop and waits for it to finish.
func (p *Page) Do(fn func()) error {
	done := make(chan struct{})
	select {
	case p.events <- func() { fn(); close(done) }:
	case <-p.ctx.Done():
		return ErrPageClosed
	}
	select {
	case <-done:
		return nil
	case <-p.ctx.Done():
		return ErrPageClosed
	}
}

func (p *Page) router(kind widget.Kind) (*widget.Router, *widget.Slot) {
	if kind == widget.KindCalendar {
		return p.calendar, p.calSlot
	}
	return p.addons, p.addSlot
}

// Serve mounts h as the page's widget of the given kind and delivers its
// messages until it disconnects. A newer handle for the same kind replaces
// and closes the older one.
func (p *Page) Serve(kind widget.Kind, h widget.Handle) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	router, slot := p.router(kind)
	if prev := slot.Set(h); prev != nil {
		_ = prev.Close()
	}
	p.touch()
	p.logger.Info("flow: widget mounted", "widget", string(kind))

	err := h.Listen(p.ctx, func(msg widget.Message) {
		p.enqueue(func() {
			p.touch()
			router.Handle(msg)
		})
	})

	if slot.Clear(h) {
		p.enqueue(router.Reset)
		p.logger.Info("flow: widget unmounted", "widget", string(kind))
	}
	_ = h.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Page) refreshMonth(anchor time.Time) {
	svc := p.store.Service()
	p.coord.Refresh(p.ctx, svc.ServiceID, anchor, svc.TimeZone, p.deliverAvailability)
}

func (p *Page) deliverAvailability(res availability.Result) {
	msg := widget.Availability(res.Days, res.TimeZone)
	if res.Err != nil {
		msg = widget.AvailabilityError(res.Err.Message, res.TimeZone)
	}
	if _, err := p.calSlot.Post(msg); err != nil {
		p.logger.Warn("flow: availability post failed", "error", err)
	}
}

// submit runs on the event loop; the hand-off itself runs on its own
// goroutine and reports back through the loop.
func (p *Page) submit(payload json.RawMessage) {
	p.mu.Lock()
	switch p.status {
	case StatusSubmitting:
		p.mu.Unlock()
		p.logger.Warn("flow: submission already in progress")
		return
	case StatusConfirmed:
		receipt := p.receipt
		p.mu.Unlock()
		p.logger.Warn("flow: booking already confirmed", "booking_id", receipt.BookingID)
		p.post(p.addSlot, widget.BookingConfirmed(receipt.BookingID, receipt.Redirect))
		return
	}
	p.status = StatusSubmitting
	p.lastErr = ""
	p.mu.Unlock()

	ts := p.store.Stamp(p.now())
	booking, err := submission.Merge(p.store.Snapshot(), payload, ts)
	if err != nil {
		p.finishSubmit(submission.Receipt{}, err)
		return
	}
	req := submission.Request{PageID: p.id, SessionKey: p.sessionKey, Booking: booking}

	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, submitTimeout)
		defer cancel()
		receipt, err := p.submitter.Submit(ctx, req)
		p.enqueue(func() { p.finishSubmit(receipt, err) })
	}()
}

func (p *Page) finishSubmit(receipt submission.Receipt, err error) {
	p.mu.Lock()
	if err != nil {
		p.status = StatusError
		p.lastErr = err.Error()
	} else {
		p.status = StatusConfirmed
		p.receipt = receipt
	}
	p.mu.Unlock()

	if err != nil {
		p.metrics.ObserveSubmission("failed")
		p.logger.Error("flow: booking submission failed", "error", err)
		p.post(p.addSlot, widget.BookingError("We couldn't complete your booking. Please try again."))
		return
	}
	p.metrics.ObserveSubmission("accepted")
	p.logger.Info("flow: booking submitted", "booking_id", receipt.BookingID)
	p.post(p.addSlot, widget.BookingConfirmed(receipt.BookingID, receipt.Redirect))
}

func (p *Page) post(slot *widget.Slot, msg widget.Message) {
	if _, err := slot.Post(msg); err != nil {
		p.logger.Warn("flow: post failed", "type", msg.Type, "error", err)
	}
}

// ChoosePayment negotiates a payment choice for the page's service.
func (p *Page) ChoosePayment(ctx context.Context, paymentType string, destination paymentchoice.Destination) (paymentchoice.Outcome, error) {
	if p.ctx.Err() != nil {
		return paymentchoice.Outcome{}, ErrPageClosed
	}
	p.touch()
	return p.negotiator.Choose(ctx, p.sessionKey, p.store, p.skus, paymentType, destination)
}

// Snapshot returns the current view of the page.
func (p *Page) Snapshot() Snapshot {
	d := p.store.Snapshot()
	snap := Snapshot{
		ID:            p.id,
		Kind:          p.kind,
		Strategy:      p.strategy,
		Draft:         d,
		CombinedTotal: d.CombinedTotal(),
		Widgets: map[string]WidgetStatus{
			string(widget.KindCalendar): {Mounted: p.calSlot.Present(), State: p.calendar.State()},
			string(widget.KindAddons):   {Mounted: p.addSlot.Present(), State: p.addons.State()},
		},
	}
	if d.Payment != nil {
		snap.RemainingBalance = handoff.Handoff{
			Service:       d.Service,
			PaymentType:   d.Payment.Type,
			PaymentAmount: d.Payment.Amount,
		}.RemainingBalance()
	}
	if p.kind == KindBooking {
		snap.PaymentRecord = p.choice.Status.String()
	}

	p.mu.Lock()
	snap.Status = p.status
	snap.Error = p.lastErr
	snap.BookingID = p.receipt.BookingID
	snap.Redirect = p.receipt.Redirect
	p.mu.Unlock()
	return snap
}

func (p *Page) touch() {
	p.mu.Lock()
	p.lastActivity = p.now()
	p.mu.Unlock()
}

func (p *Page) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastActivity
}

func (p *Page) mounted() bool {
	return p.calSlot.Present() || p.addSlot.Present()
}

// Close stops the event loop and disconnects both widgets.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		for _, slot := range []*widget.Slot{p.calSlot, p.addSlot} {
			if h, ok := slot.Get(); ok {
				_ = h.Close()
			}
		}
		p.metrics.PageClosed()
		p.logger.Info("flow: page closed")
	})
}
