package handler

import (
	"net/http"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	service *service.AlertService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := repository.AlertFilter{
		AlertType: r.URL.Query().Get("type"),
		Page:      page,
		PerPage:   perPage,
	}
	if r.URL.Query().Get("acknowledged") != "" {
		acknowledged, err := httputil.QueryBool(r, "acknowledged", false)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		filter.Acknowledged = &acknowledged
	}

	alerts, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.NewMeta(page, perPage, total))
}

// Acknowledge acknowledges an alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.service.Acknowledge(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Count returns the number of open alerts
func (h *AlertHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountOpen(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"count": count})
}
