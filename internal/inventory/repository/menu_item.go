package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// MenuItem is a dish sold to customers
type MenuItem struct {
	ID          int64           `db:"menu_item_id" json:"menuItemId"`
	Name        string          `db:"menu_item_name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`

	Ingredients []RecipeIngredient `db:"-" json:"ingredients,omitempty"`
}

// RecipeIngredient is the quantity of an item consumed by one unit of a
// menu item
type RecipeIngredient struct {
	MenuItemID       int64           `db:"menu_item_id" json:"menuItemId"`
	ItemID           int64           `db:"item_id" json:"itemId"`
	ItemName         string          `db:"item_name" json:"itemName"`
	QuantityRequired decimal.Decimal `db:"quantity_required" json:"quantityRequired"`
	UnitID           int64           `db:"unit_id" json:"unitId"`
	UnitAbbrev       string          `db:"abbreviation" json:"unitAbbreviation"`
}

// MenuItemRepository handles menu item and recipe persistence
type MenuItemRepository struct {
	db *database.DB
}

// NewMenuItemRepository creates a new menu item repository
func NewMenuItemRepository(db *database.DB) *MenuItemRepository {
	return &MenuItemRepository{db: db}
}

// Create creates a new menu item
func (r *MenuItemRepository) Create(ctx context.Context, m *MenuItem) error {
	query := `
		INSERT INTO menu_items (menu_item_name, description, price)
		VALUES ($1, $2, $3)
		RETURNING menu_item_id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, m.Name, m.Description, m.Price).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return mapWriteError(err)
}

// GetByID retrieves a menu item together with its recipe
func (r *MenuItemRepository) GetByID(ctx context.Context, id int64) (*MenuItem, error) {
	var m MenuItem
	err := r.db.GetContext(ctx, &m,
		`SELECT menu_item_id, menu_item_name, description, price, created_at, updated_at
		FROM menu_items WHERE menu_item_id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("menu item")
	}
	if err != nil {
		return nil, err
	}

	m.Ingredients, err = r.ListIngredients(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns all menu items ordered by name, without recipes
func (r *MenuItemRepository) List(ctx context.Context) ([]MenuItem, error) {
	items := []MenuItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT menu_item_id, menu_item_name, description, price, created_at, updated_at
		FROM menu_items ORDER BY menu_item_name`)
	return items, err
}

// Update updates a menu item's name, description and price
func (r *MenuItemRepository) Update(ctx context.Context, m *MenuItem) error {
	query := `
		UPDATE menu_items SET menu_item_name = $2, description = $3, price = $4, updated_at = NOW()
		WHERE menu_item_id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, m.ID, m.Name, m.Description, m.Price).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("menu item")
	}
	return mapWriteError(err)
}

// Delete removes a menu item. Its recipe goes with it and past sales keep
// their usage rows with the menu item reference cleared.
func (r *MenuItemRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM menu_items WHERE menu_item_id = $1`, id)
	if err != nil {
		return mapDeleteError(err, "menu item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("menu item")
	}
	return nil
}

const ingredientSelect = `
	SELECT ri.menu_item_id, ri.item_id, i.item_name, ri.quantity_required, ri.unit_id, u.abbreviation
	FROM recipe_ingredients ri
	JOIN inventory_items i ON i.item_id = ri.item_id
	JOIN units u ON u.unit_id = ri.unit_id
`

// ListIngredients returns the recipe of a menu item
func (r *MenuItemRepository) ListIngredients(ctx context.Context, menuItemID int64) ([]RecipeIngredient, error) {
	ingredients := []RecipeIngredient{}
	err := r.db.SelectContext(ctx, &ingredients,
		ingredientSelect+` WHERE ri.menu_item_id = $1 ORDER BY i.item_name`, menuItemID)
	return ingredients, err
}

// AddIngredient adds an item to a recipe
func (r *MenuItemRepository) AddIngredient(ctx context.Context, ri *RecipeIngredient) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recipe_ingredients (menu_item_id, item_id, quantity_required, unit_id)
		VALUES ($1, $2, $3, $4)`,
		ri.MenuItemID, ri.ItemID, ri.QuantityRequired, ri.UnitID)
	if err != nil {
		return mapWriteError(err)
	}
	return r.loadIngredient(ctx, ri)
}

// UpdateIngredient changes the quantity or unit of a recipe line
func (r *MenuItemRepository) UpdateIngredient(ctx context.Context, ri *RecipeIngredient) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE recipe_ingredients SET quantity_required = $3, unit_id = $4
		WHERE menu_item_id = $1 AND item_id = $2`,
		ri.MenuItemID, ri.ItemID, ri.QuantityRequired, ri.UnitID)
	if err != nil {
		return mapWriteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("recipe ingredient")
	}
	return r.loadIngredient(ctx, ri)
}

// RemoveIngredient removes an item from a recipe
func (r *MenuItemRepository) RemoveIngredient(ctx context.Context, menuItemID, itemID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM recipe_ingredients WHERE menu_item_id = $1 AND item_id = $2`, menuItemID, itemID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("recipe ingredient")
	}
	return nil
}

func (r *MenuItemRepository) loadIngredient(ctx context.Context, ri *RecipeIngredient) error {
	return r.db.GetContext(ctx, ri,
		ingredientSelect+` WHERE ri.menu_item_id = $1 AND ri.item_id = $2`, ri.MenuItemID, ri.ItemID)
}
