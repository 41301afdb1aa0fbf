package handler

import (
	"net/http"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// UnitHandler handles unit of measure endpoints
type UnitHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(svc *service.CatalogService, log *logger.Logger) *UnitHandler {
	return &UnitHandler{
		service: svc,
		logger:  log,
	}
}

type unitRequest struct {
	Name         string `json:"name" validate:"required,max=50"`
	Abbreviation string `json:"abbreviation" validate:"required,max=10"`
}

func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, units)
}

func (h *UnitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

func (h *UnitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	unit := &repository.Unit{Name: req.Name, Abbreviation: req.Abbreviation}
	if err := h.service.CreateUnit(r.Context(), unit); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, unit)
}

func (h *UnitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req unitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	unit := &repository.Unit{ID: id, Name: req.Name, Abbreviation: req.Abbreviation}
	if err := h.service.UpdateUnit(r.Context(), unit); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// Delete deletes a unit. Units still referenced by items or movements
// cannot be deleted.
func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteUnit(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
