package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/draft"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/paymentchoice"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/internal/submission"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// ErrUnknownStrategy means no field mapping is registered under the name.
var ErrUnknownStrategy = errors.New("flow: unknown page strategy")

// Deps are the collaborators shared by every page.
type Deps struct {
	Strategies      *servicectx.Registry
	Backend         availability.Backend
	Bridge          *handoff.Bridge
	Negotiator      *paymentchoice.Negotiator
	Submitter       submission.Submitter
	FallbackSKUs    servicectx.ProductSKUs
	DefaultTimeZone string
	IdleTimeout     time.Duration
	Metrics         *metrics.FlowMetrics
	Logger          *logging.Logger
}

// Manager owns the open pages.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu    sync.RWMutex
	pages map[string]*Page
}

// NewManager validates deps and creates an empty manager.
func NewManager(deps Deps) *Manager {
	if deps.Strategies == nil {
		panic("flow: strategy registry required")
	}
	if deps.Backend == nil {
		panic("flow: availability backend required")
	}
	if deps.Bridge == nil {
		panic("flow: handoff bridge required")
	}
	if deps.Negotiator == nil {
		panic("flow: payment negotiator required")
	}
	if deps.Submitter == nil {
		panic("flow: submitter required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.DefaultTimeZone == "" {
		deps.DefaultTimeZone = servicectx.DefaultTimeZone
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = 30 * time.Minute
	}
	return &Manager{deps: deps, now: time.Now, pages: make(map[string]*Page)}
}

// OpenServicePage resolves rec with the named strategy and opens a page for
// it. A record without a service id yields servicectx.ErrMissingServiceContext
// and no page.
func (m *Manager) OpenServicePage(strategyName string, rec servicectx.Record, clientTimeZone, sessionKey string) (*Page, error) {
	strategy, ok := m.deps.Strategies.Get(strategyName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}
	tz := servicectx.DetectTimeZone(clientTimeZone, m.deps.DefaultTimeZone)
	svc, err := strategy.Resolve(rec, tz)
	if err != nil {
		m.deps.Logger.Warn("flow: service page without service", "strategy", strategy.Name, "error", err)
		return nil, err
	}
	return m.open(pageConfig{
		kind:       KindService,
		strategy:   strategy.Name,
		sessionKey: sessionKey,
		service:    svc,
		skus:       strategy.SKUs(rec).Or(m.deps.FallbackSKUs),
	}), nil
}

// OpenBookingPage rebuilds the handoff from transition parameters and the
// session's persisted choice and opens the booking page for it.
func (m *Manager) OpenBookingPage(ctx context.Context, params url.Values, clientTimeZone, sessionKey string) (*Page, handoff.Handoff, error) {
	tz := servicectx.DetectTimeZone(clientTimeZone, m.deps.DefaultTimeZone)
	choice := m.deps.Bridge.Load(ctx, sessionKey)
	h, err := handoff.Decode(params, choice, tz)
	if err != nil {
		m.deps.Logger.Warn("flow: booking page without service", "error", err)
		return nil, handoff.Handoff{}, err
	}

	skus := m.deps.FallbackSKUs
	if h.Choice != nil && h.Choice.ProductSKU != "" {
		if h.Choice.Type == draft.PaymentDeposit {
			skus.Deposit = h.Choice.ProductSKU
		} else {
			skus.Full = h.Choice.ProductSKU
		}
	}
	p := m.open(pageConfig{
		kind:       KindBooking,
		strategy:   servicectx.StrategyHandoff,
		sessionKey: sessionKey,
		service:    h.Service,
		skus:       skus,
		choice:     choice,
		payment:    h.Choice,
	})
	return p, h, nil
}

func (m *Manager) open(cfg pageConfig) *Page {
	cfg.id = uuid.New().String()
	cfg.backend = m.deps.Backend
	cfg.negotiator = m.deps.Negotiator
	cfg.submitter = m.deps.Submitter
	cfg.metrics = m.deps.Metrics
	cfg.logger = m.deps.Logger

	p := newPage(cfg)
	m.mu.Lock()
	m.pages[p.id] = p
	m.mu.Unlock()

	m.deps.Logger.Info("flow: page opened", "page_id", p.id, "kind", cfg.kind, "strategy", cfg.strategy, "service_id", cfg.service.ServiceID)
	return p
}

// Get returns an open page.
func (m *Manager) Get(id string) (*Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	return p, ok
}

// IDs lists open page ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pages))
	for id := range m.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes and forgets a page.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	p, ok := m.pages[id]
	delete(m.pages, id)
	m.mu.Unlock()
	if ok {
		p.Close()
	}
	return ok
}

// Sweep closes pages with no mounted widget and no activity for the idle
// timeout. It returns how many were closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.deps.IdleTimeout)
	var idle []string
	m.mu.RLock()
	for id, p := range m.pages {
		if !p.mounted() && p.idleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.Close(id)
	}
	if len(idle) > 0 {
		m.deps.Logger.Info("flow: idle pages closed", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps idle pages until ctx ends, then closes every page.
func (m *Manager) Run(ctx context.Context) {
	interval := m.deps.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Shutdown closes every open page.
func (m *Manager) Shutdown() {
	for _, id := range m.IDs() {
		m.Close(id)
	}
}
