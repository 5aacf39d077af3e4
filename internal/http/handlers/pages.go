package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/medspa-booking-flow/internal/catalog"
	"github.com/wolfman30/medspa-booking-flow/internal/flow"
	"github.com/wolfman30/medspa-booking-flow/internal/handoff"
	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
	"github.com/wolfman30/medspa-booking-flow/internal/paymentchoice"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/internal/widget"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// RecordSource loads raw service records by id.
type RecordSource interface {
	Get(ctx context.Context, id string) (catalog.StoredRecord, error)
}

type PagesConfig struct {
	Manager              *flow.Manager
	Catalog              RecordSource
	ServiceSelectionPath string
	AllowedOrigins       []string
	Logger               *logging.Logger
}

// PagesHandler opens page sessions and connects widgets to them.
type PagesHandler struct {
	manager       *flow.Manager
	catalog       RecordSource
	selectionPath string
	upgrader      websocket.Upgrader
	logger        *logging.Logger
}

func NewPagesHandler(cfg PagesConfig) *PagesHandler {
	if cfg.Manager == nil {
		panic("handlers: page manager required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ServiceSelectionPath == "" {
		cfg.ServiceSelectionPath = "/services"
	}
	return &PagesHandler{
		manager:       cfg.Manager,
		catalog:       cfg.Catalog,
		selectionPath: cfg.ServiceSelectionPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     httpmiddleware.ParseOrigins(cfg.AllowedOrigins).CheckWidgetOrigin,
		},
		logger: cfg.Logger,
	}
}

// Routes mounts the page endpoints.
func (h *PagesHandler) Routes(open func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(opening chi.Router) {
		if open != nil {
			opening.Use(open)
		}
		opening.Post("/services/{strategy}", h.OpenServicePage)
		opening.Post("/booking", h.OpenBookingPage)
	})
	r.Route("/{pageID}", func(page chi.Router) {
		page.Get("/", h.GetPage)
		page.Delete("/", h.ClosePage)
		page.Post("/payment", h.ChoosePayment)
		page.Get("/widgets/{widget}/ws", h.WidgetSocket)
	})
	return r
}

type pageResponse struct {
	Page    flow.Snapshot     `json:"page"`
	Widgets map[string]string `json:"widgets"`
}

type handoffResponse struct {
	Service          servicectx.ServiceContext `json:"service"`
	PaymentType      string                    `json:"paymentType"`
	PaymentAmount    float64                   `json:"paymentAmount"`
	RemainingBalance float64                   `json:"remainingBalance"`
}

type bookingPageResponse struct {
	pageResponse
	Handoff handoffResponse `json:"handoff"`
}

func newPageResponse(p *flow.Page) pageResponse {
	return pageResponse{
		Page: p.Snapshot(),
		Widgets: map[string]string{
			string(widget.KindCalendar): "/pages/" + p.ID() + "/widgets/calendar/ws",
			string(widget.KindAddons):   "/pages/" + p.ID() + "/widgets/addons/ws",
		},
	}
}

// OpenServicePage opens a page for a raw service record. The record is the
// request body, or the catalog record named by ?record=, whose source must
// match the strategy.
// Route: POST /pages/services/{strategy}
func (h *PagesHandler) OpenServicePage(w http.ResponseWriter, r *http.Request) {
	strategy := strings.TrimSpace(chi.URLParam(r, "strategy"))

	var rec servicectx.Record
	if id := strings.TrimSpace(r.URL.Query().Get("record")); id != "" {
		if h.catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog not configured")
			return
		}
		stored, err := h.catalog.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				writeError(w, http.StatusNotFound, "record not found")
				return
			}
			h.logger.Error("failed to load catalog record", "record_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load record")
			return
		}
		if stored.Source != "" && !strings.EqualFold(stored.Source, strategy) {
			writeError(w, http.StatusConflict, "record source "+stored.Source+" does not match page strategy")
			return
		}
		rec = stored.Record
	} else {
		var err error
		if rec, err = decodeRecord(w, r); err != nil {
			writeError(w, http.StatusBadRequest, "invalid service record")
			return
		}
	}

	sessionKey, _ := httpmiddleware.SessionKeyFromContext(r.Context())
	page, err := h.manager.OpenServicePage(strategy, rec, clientTimeZone(r), sessionKey)
	switch {
	case errors.Is(err, flow.ErrUnknownStrategy):
		writeError(w, http.StatusNotFound, "unknown page strategy")
		return
	case errors.Is(err, servicectx.ErrMissingServiceContext):
		http.Redirect(w, r, h.selectionPath, http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Error("failed to open service page", "strategy", strategy, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open page")
		return
	}
	writeJSON(w, http.StatusCreated, newPageResponse(page))
}

// OpenBookingPage opens the booking page from page-transition parameters and
// the browsing session's persisted payment choice.
// Route: POST /pages/booking
func (h *PagesHandler) OpenBookingPage(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	for key, values := range r.URL.Query() {
		if key != "tz" {
			params[key] = values
		}
	}

	sessionKey, _ := httpmiddleware.SessionKeyFromContext(r.Context())
	page, ho, err := h.manager.OpenBookingPage(r.Context(), params, clientTimeZone(r), sessionKey)
	if errors.Is(err, servicectx.ErrMissingServiceContext) {
		http.Redirect(w, r, h.selectionPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("failed to open booking page", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open page")
		return
	}
	writeJSON(w, http.StatusCreated, bookingPageResponse{
		pageResponse: newPageResponse(page),
		Handoff:      toHandoffResponse(ho),
	})
}

func toHandoffResponse(ho handoff.Handoff) handoffResponse {
	return handoffResponse{
		Service:          ho.Service,
		PaymentType:      ho.PaymentType,
		PaymentAmount:    ho.PaymentAmount,
		RemainingBalance: ho.RemainingBalance(),
	}
}

func (h *PagesHandler) page(w http.ResponseWriter, r *http.Request) (*flow.Page, bool) {
	page, ok := h.manager.Get(chi.URLParam(r, "pageID"))
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
	}
	return page, ok
}

// GetPage returns the page snapshot.
// Route: GET /pages/{pageID}
func (h *PagesHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(page))
}

// ClosePage closes the page and disconnects its widgets.
// Route: DELETE /pages/{pageID}
func (h *PagesHandler) ClosePage(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Close(chi.URLParam(r, "pageID")) {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	PaymentType string `json:"paymentType"`
	Destination string `json:"destination"`
}

// ChoosePayment records a deposit-vs-full choice and routes it to the cart
// or the booking page.
// Route: POST /pages/{pageID}/payment
func (h *PagesHandler) ChoosePayment(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dest, err := paymentchoice.ParseDestination(req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := page.ChoosePayment(r.Context(), req.PaymentType, dest)
	switch {
	case errors.Is(err, paymentchoice.ErrInvalidPaymentType):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, flow.ErrPageClosed):
		writeError(w, http.StatusGone, "page closed")
		return
	case err != nil:
		h.logger.Error("payment choice failed", "page_id", page.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "payment choice failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// WidgetSocket upgrades to a websocket and serves it as the page's widget of
// the named kind until either side disconnects.
// Route: GET /pages/{pageID}/widgets/{widget}/ws
func (h *PagesHandler) WidgetSocket(w http.ResponseWriter, r *http.Request) {
	page, ok := h.page(w, r)
	if !ok {
		return
	}
	kind, err := widget.ParseKind(chi.URLParam(r, "widget"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown widget")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("widget upgrade failed", "page_id", page.ID(), "widget", string(kind), "error", err)
		return
	}
	conn := widget.NewConn(ws, kind, h.logger.With("page_id", page.ID()))
	if err := page.Serve(kind, conn); err != nil && !errors.Is(err, flow.ErrPageClosed) {
		h.logger.Warn("widget connection ended", "page_id", page.ID(), "widget", string(kind), "error", err)
	}
}
