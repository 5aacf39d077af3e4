package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/medspa-booking-flow/internal/catalog"
	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

type catalogStore interface {
	RecordSource
	Upsert(ctx context.Context, id, source string, rec servicectx.Record) error
}

// CatalogHandler exposes the raw service record store.
type CatalogHandler struct {
	store  catalogStore
	logger *logging.Logger
}

func NewCatalogHandler(store catalogStore, logger *logging.Logger) *CatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogHandler{store: store, logger: logger}
}

type putRecordRequest struct {
	Source string            `json:"source"`
	Record servicectx.Record `json:"record"`
}

// GetRecord returns a stored record.
// Route: GET /catalog/records/{recordID}
func (h *CatalogHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "recordID"))
	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load catalog record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// PutRecord stores a record under the path id.
// Route: PUT /catalog/records/{recordID}
func (h *CatalogHandler) PutRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "recordID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing record id")
		return
	}

	var req putRecordRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || req.Record == nil {
		writeError(w, http.StatusBadRequest, "invalid record")
		return
	}
	source := strings.TrimSpace(req.Source)
	if source != "" && source != servicectx.StrategyCatalog && source != servicectx.StrategyCMS && source != servicectx.StrategyBookings {
		writeError(w, http.StatusBadRequest, "unknown record source")
		return
	}

	if err := h.store.Upsert(r.Context(), id, source, req.Record); err != nil {
		h.logger.Error("failed to store catalog record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store record")
		return
	}
	editor := ""
	if claims, ok := httpmiddleware.CatalogClaimsFromContext(r.Context()); ok {
		editor = claims.Subject
	}
	h.logger.Info("catalog record stored", "record_id", id, "source", source, "editor", editor)
	w.WriteHeader(http.StatusNoContent)
}
