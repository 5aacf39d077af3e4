package widget

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// State is a router's readiness.
type State string

const (
	StateUnready State = "UNREADY"
	StateReady   State = "READY"
	StateActive  State = "ACTIVE"
)

// Hooks are the page actions a router can trigger.
type Hooks struct {
	// RefreshMonth asks for availability of the month starting at anchor.
	RefreshMonth func(anchor time.Time)
	// Submit hands a BOOKING_SUBMIT payload to the submission handler.
	Submit func(payload json.RawMessage)
}

// Router decodes one widget's inbound messages, applies them to the draft
// and posts the resulting messages to its own widget or to the peer widget.
// Handle must be called from a single goroutine.
type Router struct {
	kind    Kind
	self    *Slot
	peer    *Slot
	store   *draft.Store
	hooks   Hooks
	metrics *metrics.FlowMetrics
	logger  *logging.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state State
}

// NewRouter creates the router for kind. self and peer are the slots of this
// widget and of the other widget on the page.
func NewRouter(kind Kind, self, peer *Slot, store *draft.Store, hooks Hooks, m *metrics.FlowMetrics, logger *logging.Logger) *Router {
	if self == nil || peer == nil {
		panic("widget: router slots required")
	}
	if store == nil {
		panic("widget: draft store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		kind:    kind,
		self:    self,
		peer:    peer,
		store:   store,
		hooks:   hooks,
		metrics: m,
		logger:  logger.With("widget", string(kind)),
		now:     time.Now,
		state:   StateUnready,
	}
}

// Kind returns the widget this router serves.
func (r *Router) Kind() Kind { return r.kind }

// State returns the current readiness.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Router) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Reset returns the router to UNREADY, used when its widget disconnects.
func (r *Router) Reset() {
	r.setState(StateUnready)
}

// Handle processes one inbound message to completion.
func (r *Router) Handle(msg Message) {
	if msg.Type == TypeReady {
		r.ready()
		r.metrics.ObserveWidgetMessage(string(r.kind), msg.Type, "handled")
		return
	}
	if r.State() == StateUnready {
		r.logger.Debug("widget: message before READY ignored", "type", msg.Type)
		r.metrics.ObserveWidgetMessage(string(r.kind), msg.Type, "not_ready")
		return
	}

	var handled bool
	switch r.kind {
	case KindCalendar:
		handled = r.handleCalendar(msg)
	case KindAddons:
		handled = r.handleAddons(msg)
	}
	if !handled {
		r.metrics.ObserveWidgetMessage(string(r.kind), msg.Type, "ignored")
		return
	}
	if r.State() == StateReady {
		r.setState(StateActive)
	}
	r.metrics.ObserveWidgetMessage(string(r.kind), msg.Type, "handled")
}

func (r *Router) ready() {
	if r.State() == StateUnready {
		r.setState(StateReady)
	}
	svc := r.store.Service()
	r.post(r.self, ServiceData(svc))

	if r.kind == KindCalendar && r.hooks.RefreshMonth != nil {
		r.hooks.RefreshMonth(r.now().In(svc.Location()))
	}
}

func (r *Router) handleCalendar(msg Message) bool {
	switch msg.Type {
	case TypeMonthChange:
		year, month, ok := MonthChange(msg)
		if !ok {
			r.logger.Debug("widget: MONTH_CHANGE without a usable year and month")
			return false
		}
		if r.hooks.RefreshMonth != nil {
			loc := r.store.Service().Location()
			r.hooks.RefreshMonth(availability.MonthAnchor(year, month, loc))
		}
		return true

	case TypeTimeSelected:
		dateLabel, timeLabel := SelectionLabels(msg)
		r.store.SetSelection(dateLabel, timeLabel)
		r.post(r.peer, SelectionContext(r.store.Service().Name, dateLabel, timeLabel))
		return true
	}
	return false
}

func (r *Router) handleAddons(msg Message) bool {
	switch msg.Type {
	case TypeAddons, TypeAddonsUpdate:
		set := NormalizeAddons(msg)
		r.store.SetAddons(set.Items, set.Total, set.Minutes)
		r.post(r.peer, AddonsUpdate(r.store.Snapshot().Addons))
		return true

	case TypeBookingSubmit:
		if r.hooks.Submit != nil {
			r.hooks.Submit(msg.Payload)
		}
		return true
	}
	return false
}

func (r *Router) post(slot *Slot, msg Message) {
	if _, err := slot.Post(msg); err != nil {
		r.logger.Warn("widget: post failed", "type", msg.Type, "error", err)
	}
}
