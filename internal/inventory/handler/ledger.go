package handler

import (
	"net/http"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// LedgerHandler handles the stock movement endpoints
type LedgerHandler struct {
	ledger  *service.StockLedgerService
	reports *service.ReportingService
	logger  *logger.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledger *service.StockLedgerService, reports *service.ReportingService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:  ledger,
		reports: reports,
		logger:  log,
	}
}

// RecordDelivery records a multi-line delivery
func (h *LedgerHandler) RecordDelivery(w http.ResponseWriter, r *http.Request) {
	var req service.RecordDeliveryInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	delivery, err := h.ledger.RecordDelivery(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, delivery)
}

// ListDeliveries lists recorded deliveries
func (h *LedgerHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	supplierID, err := httputil.QueryID(r, "supplierId")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	deliveries, total, err := h.reports.ListDeliveries(r.Context(), repository.DeliveryFilter{
		SupplierID: supplierID,
		From:       from,
		To:         to,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, deliveries, httputil.NewMeta(page, perPage, total))
}

// GetDelivery gets a delivery with its lines
func (h *LedgerHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	delivery, err := h.reports.GetDelivery(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, delivery)
}

// RecordManualUsage records stock used outside of a sale
func (h *LedgerHandler) RecordManualUsage(w http.ResponseWriter, r *http.Request) {
	var req service.RecordManualUsageInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.RecordManualUsage(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// RecordSale records the sale of a menu item
func (h *LedgerHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	menuItemID, err := httputil.ParseID(r, "menuItemId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.RecordSaleInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.MenuItemID = menuItemID

	result, err := h.ledger.RecordSale(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// ListUsage lists usage records
func (h *LedgerHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := repository.UsageFilter{Page: page, PerPage: perPage}
	if t := r.URL.Query().Get("type"); t != "" {
		usageType := repository.UsageType(t)
		filter.Type = &usageType
	}

	var err error
	if filter.ItemID, err = httputil.QueryID(r, "itemId"); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.MenuItemID, err = httputil.QueryID(r, "menuItemId"); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.From, err = httputil.QueryDate(r, "startDate"); err != nil {
		httputil.Error(w, err)
		return
	}
	end, err := httputil.QueryDate(r, "endDate")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if end != nil {
		// The end date is inclusive of the whole day.
		endOfDay := end.Add(24*time.Hour - time.Nanosecond)
		filter.To = &endOfDay
	}

	records, total, err := h.reports.ListUsage(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, httputil.NewMeta(page, perPage, total))
}

// RecordWaste records discarded stock
func (h *LedgerHandler) RecordWaste(w http.ResponseWriter, r *http.Request) {
	var req service.RecordWasteInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.ledger.RecordWaste(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// dateRange reads the optional startDate and endDate query parameters
func dateRange(r *http.Request) (from, to *repository.Date, err error) {
	start, err := httputil.QueryDate(r, "startDate")
	if err != nil {
		return nil, nil, err
	}
	end, err := httputil.QueryDate(r, "endDate")
	if err != nil {
		return nil, nil, err
	}
	return toDate(start), toDate(end), nil
}

func toDate(t *time.Time) *repository.Date {
	if t == nil {
		return nil
	}
	d := repository.NewDate(*t)
	return &d
}
