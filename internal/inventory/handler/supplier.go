package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// SupplierHandler handles supplier endpoints
type SupplierHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewSupplierHandler creates a new supplier handler
func NewSupplierHandler(svc *service.CatalogService, log *logger.Logger) *SupplierHandler {
	return &SupplierHandler{
		service: svc,
		logger:  log,
	}
}

type supplierRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	ContactPerson *string `json:"contactPerson,omitempty" validate:"omitempty,max=255"`
	PhoneNumber   *string `json:"phoneNumber,omitempty" validate:"omitempty,max=50"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email"`
	StreetAddress *string `json:"streetAddress,omitempty"`
	City          *string `json:"city,omitempty"`
	PostalCode    *string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	Country       *string `json:"country,omitempty"`
}

func (req *supplierRequest) model() *repository.Supplier {
	return &repository.Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		PhoneNumber:   req.PhoneNumber,
		Email:         req.Email,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
	}
}

type supplierItemRequest struct {
	ItemID int64            `json:"itemId" validate:"required,gt=0"`
	Cost   *decimal.Decimal `json:"cost,omitempty" validate:"omitempty,gte=0"`
}

// List lists suppliers
func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suppliers)
}

// Get gets a supplier by ID
func (h *SupplierHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, supplier)
}

// Create creates a new supplier
func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	supplier := req.model()
	if err := h.service.CreateSupplier(r.Context(), supplier); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, supplier)
}

// Update updates a supplier
func (h *SupplierHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req supplierRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	supplier := req.model()
	supplier.ID = id
	if err := h.service.UpdateSupplier(r.Context(), supplier); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, supplier)
}

// Delete deletes a supplier and its item links. A supplier with recorded
// deliveries cannot be deleted.
func (h *SupplierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListItems lists the items a supplier sells
func (h *SupplierHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	items, err := h.service.ListSupplierItems(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// AddItem links an item to a supplier
func (h *SupplierHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req supplierItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	si := &repository.SupplierItem{SupplierID: id, ItemID: req.ItemID, Cost: req.Cost}
	if err := h.service.AddSupplierItem(r.Context(), si); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, si)
}

// UpdateItem changes the supplier's cost for an item
func (h *SupplierHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	itemID, err := httputil.ParseID(r, "itemId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req supplierItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.ItemID = itemID
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	si := &repository.SupplierItem{SupplierID: id, ItemID: itemID, Cost: req.Cost}
	if err := h.service.UpdateSupplierItem(r.Context(), si); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, si)
}

// RemoveItem unlinks an item from a supplier
func (h *SupplierHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	itemID, err := httputil.ParseID(r, "itemId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.RemoveSupplierItem(r.Context(), id, itemID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
