package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.CatalogService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

type createItemRequest struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Description    *string         `json:"description,omitempty"`
	CategoryID     *int64          `json:"categoryId,omitempty" validate:"omitempty,gt=0"`
	UnitID         int64           `json:"unitId" validate:"required,gt=0"`
	QuantityOnHand decimal.Decimal `json:"quantityOnHand" validate:"gte=0"`
	ReorderPoint   decimal.Decimal `json:"reorderPoint" validate:"gte=0"`
	ItemType       string          `json:"itemType" validate:"required"`

	Perishable    *repository.PerishableAttributes    `json:"perishable,omitempty"`
	NonPerishable *repository.NonPerishableAttributes `json:"nonPerishable,omitempty"`
	Tool          *repository.ToolAttributes          `json:"tool,omitempty"`
}

// updateItemRequest carries the mutable fields. The balance only moves
// through deliveries, usage and waste.
type updateItemRequest struct {
	Name           string           `json:"name" validate:"required,max=255"`
	Description    *string          `json:"description,omitempty"`
	CategoryID     *int64           `json:"categoryId,omitempty" validate:"omitempty,gt=0"`
	UnitID         int64            `json:"unitId" validate:"required,gt=0"`
	ReorderPoint   decimal.Decimal  `json:"reorderPoint" validate:"gte=0"`
	ItemType       string           `json:"itemType,omitempty"`
	QuantityOnHand *decimal.Decimal `json:"quantityOnHand,omitempty"`

	Perishable    *repository.PerishableAttributes    `json:"perishable,omitempty"`
	NonPerishable *repository.NonPerishableAttributes `json:"nonPerishable,omitempty"`
	Tool          *repository.ToolAttributes          `json:"tool,omitempty"`
}

// List lists inventory items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	categoryID, err := httputil.QueryID(r, "categoryId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filter := repository.ItemFilter{CategoryID: categoryID, Page: page, PerPage: perPage}
	if t := r.URL.Query().Get("itemType"); t != "" {
		itemType := repository.ItemType(t)
		filter.ItemType = &itemType
	}
	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		filter.Search = &q
	}

	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, httputil.NewMeta(page, perPage, total))
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item := &repository.InventoryItem{
		Name:           req.Name,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		UnitID:         req.UnitID,
		QuantityOnHand: req.QuantityOnHand,
		ReorderPoint:   req.ReorderPoint,
		ItemType:       repository.ItemType(req.ItemType),
		Perishable:     req.Perishable,
		NonPerishable:  req.NonPerishable,
		Tool:           req.Tool,
	}
	if err := h.service.CreateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates an item's master data and type attributes
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.QuantityOnHand != nil {
		httputil.Error(w, errors.Validation(map[string]string{
			"quantityOnHand": "cannot be changed directly; record a delivery, usage or waste",
		}))
		return
	}

	item := &repository.InventoryItem{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		UnitID:        req.UnitID,
		ReorderPoint:  req.ReorderPoint,
		ItemType:      repository.ItemType(req.ItemType),
		Perishable:    req.Perishable,
		NonPerishable: req.NonPerishable,
		Tool:          req.Tool,
	}
	if err := h.service.UpdateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Delete deletes an item. Items with recorded movements cannot be deleted.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
