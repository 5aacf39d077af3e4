package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medspa-booking-flow/internal/availability"
	"github.com/wolfman30/medspa-booking-flow/internal/catalog"
	"github.com/wolfman30/medspa-booking-flow/internal/flow"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	"github.com/wolfman30/medspa-booking-flow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/internal/paymentchoice"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/internal/submission"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

type emptyBackend struct{}

func (emptyBackend) GetAvailability(context.Context, string, string, string, string) ([]availability.Day, error) {
	return nil, nil
}

type memoryRecords map[string]catalog.StoredRecord

func (m memoryRecords) Get(_ context.Context, id string) (catalog.StoredRecord, error) {
	rec, ok := m[id]
	if !ok {
		return catalog.StoredRecord{}, catalog.ErrNotFound
	}
	return rec, nil
}

func (m memoryRecords) Upsert(_ context.Context, id, source string, rec servicectx.Record) error {
	m[id] = catalog.StoredRecord{ID: id, Source: source, Record: rec}
	return nil
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.PageOpenLimiter) http.Handler {
	t.Helper()

	logger := logging.New("error")
	reg := prometheus.NewRegistry()
	m := metrics.NewFlowMetrics(reg)
	bridge := handoff.NewBridge(handoff.NewMemoryStore(time.Hour), m, logger)
	manager := flow.NewManager(flow.Deps{
		Strategies: servicectx.DefaultRegistry(0.3),
		Backend:    emptyBackend{},
		Bridge:     bridge,
		Negotiator: paymentchoice.NewNegotiator(bridge, nil, paymentchoice.Config{}, m, logger),
		Submitter:  submission.NewLogSubmitter("", logger),
		Metrics:    m,
		Logger:     logger,
	})
	t.Cleanup(manager.Shutdown)

	records := memoryRecords{}
	return New(&Config{
		Logger:              logger,
		Pages:               handlers.NewPagesHandler(handlers.PagesConfig{Manager: manager, Catalog: records, Logger: logger}),
		Catalog:             handlers.NewCatalogHandler(records, logger),
		PageOpenLimiter:     limiter,
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CatalogEditorSecret: "secret",
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterOpensPageAndExposesMetrics(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/pages/services/bookings", strings.NewReader(`{"id":"svc_9","price":{"amount":"45"}}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatalf("expected browsing-session cookie")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "booking_flow_pages_open 1") {
		t.Fatalf("expected open page gauge, got:\n%s", rr.Body.String())
	}
}

func TestRouterLimitsPageOpens(t *testing.T) {
	router := newTestRouter(t, httpmiddleware.NewPageOpenLimiter(0, 1))

	open := func(cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/pages/services/catalog", strings.NewReader(`{"_id":"svc_1"}`))
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := open(nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	cookie := first.Result().Cookies()[0]
	if second := open(cookie); second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestRouterLimitsCookielessPageOpens(t *testing.T) {
	router := newTestRouter(t, httpmiddleware.NewPageOpenLimiter(0, 1))

	created := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pages/services/catalog", strings.NewReader(`{"_id":"svc_1"}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code == http.StatusCreated {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected 1 page opened without cookies, got %d", created)
	}
}

func TestRouterCatalogWritesRequireToken(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/catalog/records/svc_1", strings.NewReader(`{"record":{"_id":"svc_1"}}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/records/svc_1", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
