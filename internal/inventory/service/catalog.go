package service

import (
	"context"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/pkg/cache"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

// CatalogService manages the reference data the ledger points at. It never
// changes a stock balance after an item is created.
type CatalogService struct {
	categoryRepo *repository.CategoryRepository
	unitRepo     *repository.UnitRepository
	supplierRepo *repository.SupplierRepository
	itemRepo     *repository.ItemRepository
	menuRepo     *repository.MenuItemRepository
	cache        *cache.Client
	logger       *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	categoryRepo *repository.CategoryRepository,
	unitRepo *repository.UnitRepository,
	supplierRepo *repository.SupplierRepository,
	itemRepo *repository.ItemRepository,
	menuRepo *repository.MenuItemRepository,
	cache *cache.Client,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		categoryRepo: categoryRepo,
		unitRepo:     unitRepo,
		supplierRepo: supplierRepo,
		itemRepo:     itemRepo,
		menuRepo:     menuRepo,
		cache:        cache,
		logger:       log.WithComponent("catalog"),
	}
}

// changed drops cached reports after a successful write. Names, reorder
// points and recipes all show up in report output.
func (s *CatalogService) changed(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if cerr := s.cache.Invalidate(ctx, ReportCacheNamespace); cerr != nil {
		s.logger.Warn().Err(cerr).Msg("failed to invalidate report cache")
	}
	return nil
}

// Category operations

func (s *CatalogService) CreateCategory(ctx context.Context, c *repository.Category) error {
	return s.changed(ctx, s.categoryRepo.Create(ctx, c))
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*repository.Category, error) {
	return s.categoryRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]repository.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, c *repository.Category) error {
	return s.changed(ctx, s.categoryRepo.Update(ctx, c))
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.changed(ctx, s.categoryRepo.Delete(ctx, id))
}

// Unit operations

func (s *CatalogService) CreateUnit(ctx context.Context, u *repository.Unit) error {
	return s.changed(ctx, s.unitRepo.Create(ctx, u))
}

func (s *CatalogService) GetUnit(ctx context.Context, id int64) (*repository.Unit, error) {
	return s.unitRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListUnits(ctx context.Context) ([]repository.Unit, error) {
	return s.unitRepo.List(ctx)
}

func (s *CatalogService) UpdateUnit(ctx context.Context, u *repository.Unit) error {
	return s.changed(ctx, s.unitRepo.Update(ctx, u))
}

func (s *CatalogService) DeleteUnit(ctx context.Context, id int64) error {
	return s.changed(ctx, s.unitRepo.Delete(ctx, id))
}

// Supplier operations

func (s *CatalogService) CreateSupplier(ctx context.Context, sup *repository.Supplier) error {
	return s.changed(ctx, s.supplierRepo.Create(ctx, sup))
}

func (s *CatalogService) GetSupplier(ctx context.Context, id int64) (*repository.Supplier, error) {
	return s.supplierRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListSuppliers(ctx context.Context) ([]repository.Supplier, error) {
	return s.supplierRepo.List(ctx)
}

func (s *CatalogService) UpdateSupplier(ctx context.Context, sup *repository.Supplier) error {
	return s.changed(ctx, s.supplierRepo.Update(ctx, sup))
}

func (s *CatalogService) DeleteSupplier(ctx context.Context, id int64) error {
	return s.changed(ctx, s.supplierRepo.Delete(ctx, id))
}

// ListSupplierItems lists the items a supplier sells. A missing supplier is
// reported as not found rather than as an empty list.
func (s *CatalogService) ListSupplierItems(ctx context.Context, supplierID int64) ([]repository.SupplierItem, error) {
	if _, err := s.supplierRepo.GetByID(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.supplierRepo.ListItems(ctx, supplierID)
}

func (s *CatalogService) AddSupplierItem(ctx context.Context, si *repository.SupplierItem) error {
	return s.supplierRepo.AddItem(ctx, si)
}

func (s *CatalogService) UpdateSupplierItem(ctx context.Context, si *repository.SupplierItem) error {
	return s.supplierRepo.UpdateItemCost(ctx, si)
}

func (s *CatalogService) RemoveSupplierItem(ctx context.Context, supplierID, itemID int64) error {
	return s.supplierRepo.RemoveItem(ctx, supplierID, itemID)
}

// Item operations

// CreateItem creates an item with its type attributes. The initial quantity
// becomes the item's opening balance.
func (s *CatalogService) CreateItem(ctx context.Context, item *repository.InventoryItem) error {
	details := map[string]string{}
	if !item.ItemType.Valid() {
		details["itemType"] = "must be one of: Perishable, NonPerishable, Tool"
	} else {
		checkPayload(details, item.ItemType, item)
	}
	if msg := quantityError(item.QuantityOnHand, true); msg != "" {
		details["quantityOnHand"] = msg
	}
	if msg := quantityError(item.ReorderPoint, true); msg != "" {
		details["reorderPoint"] = msg
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return err
	}

	s.logger.Info().
		Int64("item_id", item.ID).
		Str("item_type", string(item.ItemType)).
		Str("opening_quantity", item.OpeningQuantity.String()).
		Msg("inventory item created")
	return s.changed(ctx, nil)
}

func (s *CatalogService) GetItem(ctx context.Context, id int64) (*repository.InventoryItem, error) {
	return s.itemRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListItems(ctx context.Context, filter repository.ItemFilter) ([]repository.InventoryItem, int64, error) {
	if filter.ItemType != nil && !filter.ItemType.Valid() {
		return nil, 0, errors.Validation(map[string]string{"itemType": "must be one of: Perishable, NonPerishable, Tool"})
	}
	return s.itemRepo.List(ctx, filter)
}

// UpdateItem changes an item's master fields and the attributes of its own
// type. The type itself cannot change, and an attribute payload for another
// type is rejected.
func (s *CatalogService) UpdateItem(ctx context.Context, item *repository.InventoryItem) error {
	existing, err := s.itemRepo.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}

	details := map[string]string{}
	if item.ItemType != "" && item.ItemType != existing.ItemType {
		details["itemType"] = "cannot be changed after creation"
	}
	checkPayload(details, existing.ItemType, item)
	if msg := quantityError(item.ReorderPoint, true); msg != "" {
		details["reorderPoint"] = msg
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}

	return s.changed(ctx, s.itemRepo.Update(ctx, item))
}

// checkPayload rejects attributes that belong to a type other than t
func checkPayload(details map[string]string, t repository.ItemType, item *repository.InventoryItem) {
	if item.Perishable != nil && t != repository.ItemTypePerishable {
		details["perishable"] = "only allowed for Perishable items"
	}
	if item.NonPerishable != nil && t != repository.ItemTypeNonPerishable {
		details["nonPerishable"] = "only allowed for NonPerishable items"
	}
	if item.Tool != nil && t != repository.ItemTypeTool {
		details["tool"] = "only allowed for Tool items"
	}
}

func (s *CatalogService) DeleteItem(ctx context.Context, id int64) error {
	return s.changed(ctx, s.itemRepo.Delete(ctx, id))
}

// Menu item operations

func (s *CatalogService) CreateMenuItem(ctx context.Context, m *repository.MenuItem) error {
	if m.Price.IsNegative() {
		return errors.Validation(map[string]string{"price": "must not be negative"})
	}
	return s.changed(ctx, s.menuRepo.Create(ctx, m))
}

func (s *CatalogService) GetMenuItem(ctx context.Context, id int64) (*repository.MenuItem, error) {
	return s.menuRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListMenuItems(ctx context.Context) ([]repository.MenuItem, error) {
	return s.menuRepo.List(ctx)
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, m *repository.MenuItem) error {
	if m.Price.IsNegative() {
		return errors.Validation(map[string]string{"price": "must not be negative"})
	}
	return s.changed(ctx, s.menuRepo.Update(ctx, m))
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, id int64) error {
	return s.changed(ctx, s.menuRepo.Delete(ctx, id))
}

// ListIngredients lists a menu item's recipe
func (s *CatalogService) ListIngredients(ctx context.Context, menuItemID int64) ([]repository.RecipeIngredient, error) {
	if _, err := s.menuRepo.GetByID(ctx, menuItemID); err != nil {
		return nil, err
	}
	return s.menuRepo.ListIngredients(ctx, menuItemID)
}

func (s *CatalogService) AddIngredient(ctx context.Context, ri *repository.RecipeIngredient) error {
	if msg := quantityError(ri.QuantityRequired, false); msg != "" {
		return errors.Validation(map[string]string{"quantityRequired": msg})
	}
	return s.menuRepo.AddIngredient(ctx, ri)
}

func (s *CatalogService) UpdateIngredient(ctx context.Context, ri *repository.RecipeIngredient) error {
	if msg := quantityError(ri.QuantityRequired, false); msg != "" {
		return errors.Validation(map[string]string{"quantityRequired": msg})
	}
	return s.menuRepo.UpdateIngredient(ctx, ri)
}

func (s *CatalogService) RemoveIngredient(ctx context.Context, menuItemID, itemID int64) error {
	return s.menuRepo.RemoveIngredient(ctx, menuItemID, itemID)
}
