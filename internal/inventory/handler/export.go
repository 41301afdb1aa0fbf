package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// ExportHandler handles spreadsheet export endpoints
type ExportHandler struct {
	service *service.ReportingService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc *service.ReportingService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

// ExportLowStock serves the low stock report as a workbook
func (h *ExportHandler) ExportLowStock(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportLowStock(r.Context(), &buf); err != nil {
		h.logger.Error().Err(err).Msg("failed to generate low stock workbook")
		httputil.Error(w, err)
		return
	}

	h.send(w, "low-stock", &buf)
}

// ExportExpirations serves the expiration report as a workbook
func (h *ExportHandler) ExportExpirations(w http.ResponseWriter, r *http.Request) {
	days, includePastDue, err := expirationParams(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportExpirations(r.Context(), days, includePastDue, &buf); err != nil {
		h.logger.Error().Err(err).Msg("failed to generate expirations workbook")
		httputil.Error(w, err)
		return
	}

	h.send(w, "expirations", &buf)
}

// ExportWaste serves the waste report as a workbook
func (h *ExportHandler) ExportWaste(w http.ResponseWriter, r *http.Request) {
	filter, err := wasteFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportWaste(r.Context(), filter, &buf); err != nil {
		h.logger.Error().Err(err).Msg("failed to generate waste workbook")
		httputil.Error(w, err)
		return
	}

	h.send(w, "waste", &buf)
}

func (h *ExportHandler) send(w http.ResponseWriter, report string, buf *bytes.Buffer) {
	filename := fmt.Sprintf("%s-%s.xlsx", report, time.Now().Format("2006-01-02"))
	httputil.Attachment(w, service.XLSXContentType, filename, buf.Bytes())
}
