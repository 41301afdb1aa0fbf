package handler

import (
	"net/http"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/httputil"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// CategoryHandler handles category endpoints
type CategoryHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(svc *service.CatalogService, log *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		service: svc,
		logger:  log,
	}
}

type categoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description,omitempty"`
}

func (req *categoryRequest) model() *repository.Category {
	return &repository.Category{Name: req.Name, Description: req.Description}
}

// List lists categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, categories)
}

// Get gets a category by ID
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, category)
}

// Create creates a new category
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	category := req.model()
	if err := h.service.CreateCategory(r.Context(), category); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, category)
}

// Update updates a category
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req categoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	category := req.model()
	category.ID = id
	if err := h.service.UpdateCategory(r.Context(), category); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, category)
}

// Delete deletes a category. A category still holding items is a conflict.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseID(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
