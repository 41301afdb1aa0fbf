package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// MenuItemHandler handles menu item and recipe endpoints
type MenuItemHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewMenuItemHandler creates a new menu item handler
func NewMenuItemHandler(svc *service.CatalogService, log *logger.Logger) *MenuItemHandler {
	return &MenuItemHandler{
		service: svc,
		logger:  log,
	}
}

type menuItemRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

type ingredientRequest struct {
	ItemID           int64           `json:"itemId" validate:"required,gt=0"`
	QuantityRequired decimal.Decimal `json:"quantityRequired" validate:"gt=0"`
	UnitID           int64           `json:"unitId" validate:"required,gt=0"`
}

// List lists menu items
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	menuItems, err := h.service.ListMenuItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, menuItems)
}

// Get gets a menu item with its recipe
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	menuItem, err := h.service.GetMenuItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, menuItem)
}

// Create creates a new menu item
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	menuItem := &repository.MenuItem{Name: req.Name, Description: req.Description, Price: req.Price}
	if err := h.service.CreateMenuItem(r.Context(), menuItem); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, menuItem)
}

// Update updates a menu item
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req menuItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	menuItem := &repository.MenuItem{ID: id, Name: req.Name, Description: req.Description, Price: req.Price}
	if err := h.service.UpdateMenuItem(r.Context(), menuItem); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, menuItem)
}

// Delete deletes a menu item and its recipe. Past sales keep their usage
// rows without the menu item reference.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteMenuItem(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListIngredients lists a menu item's recipe
func (h *MenuItemHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	ingredients, err := h.service.ListIngredients(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ingredients)
}

// AddIngredient adds an inventory item to a recipe
func (h *MenuItemHandler) AddIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req ingredientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ingredient := &repository.RecipeIngredient{
		MenuItemID:       id,
		ItemID:           req.ItemID,
		QuantityRequired: req.QuantityRequired,
		UnitID:           req.UnitID,
	}
	if err := h.service.AddIngredient(r.Context(), ingredient); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ingredient)
}

// UpdateIngredient changes the quantity or unit of a recipe line
func (h *MenuItemHandler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
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

	var req ingredientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.ItemID = itemID
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ingredient := &repository.RecipeIngredient{
		MenuItemID:       id,
		ItemID:           itemID,
		QuantityRequired: req.QuantityRequired,
		UnitID:           req.UnitID,
	}
	if err := h.service.UpdateIngredient(r.Context(), ingredient); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ingredient)
}

// RemoveIngredient removes an item from a recipe
func (h *MenuItemHandler) RemoveIngredient(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.RemoveIngredient(r.Context(), id, itemID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
