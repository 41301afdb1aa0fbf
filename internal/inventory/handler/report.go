package handler

import (
	"net/http"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// ReportHandler handles the read-only report endpoints
type ReportHandler struct {
	service *service.ReportingService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportingService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// LowStock lists items at or below their reorder point
func (h *ReportHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Expirations lists delivery lines expiring within the requested window
func (h *ReportHandler) Expirations(w http.ResponseWriter, r *http.Request) {
	days, includePastDue, err := expirationParams(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lines, err := h.service.Expirations(r.Context(), days, includePastDue)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lines)
}

// Waste lists waste records
func (h *ReportHandler) Waste(w http.ResponseWriter, r *http.Request) {
	filter, err := wasteFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	records, err := h.service.Waste(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}

// Reconciliation compares stored balances with the ledger
func (h *ReportHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	itemID, err := httputil.QueryID(r, "itemId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.Reconcile(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// Dashboard returns summary counts
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, counts)
}

func expirationParams(r *http.Request) (int, bool, error) {
	days, err := httputil.QueryInt(r, "days", service.DefaultExpiryDays, 0, service.MaxExpiryDays)
	if err != nil {
		return 0, false, err
	}
	includePastDue, err := httputil.QueryBool(r, "includePastDue", true)
	if err != nil {
		return 0, false, err
	}
	return days, includePastDue, nil
}

func wasteFilter(r *http.Request) (repository.WasteFilter, error) {
	itemID, err := httputil.QueryID(r, "itemId")
	if err != nil {
		return repository.WasteFilter{}, err
	}
	from, to, err := dateRange(r)
	if err != nil {
		return repository.WasteFilter{}, err
	}
	return repository.WasteFilter{ItemID: itemID, From: from, To: to}, nil
}
