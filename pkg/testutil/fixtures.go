package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stretchr/testify/require"
)

// ItemFixture represents test inventory item data
type ItemFixture struct {
	Name           string
	UnitID         int64
	CategoryID     *int64
	QuantityOnHand string
	ReorderPoint   string
	ItemType       string
}

// Fixtures inserts catalog rows straight into a test schema
type Fixtures struct {
	db       *database.DB
	sequence int
}

// NewFixtures creates fixtures bound to db
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

func (f *Fixtures) nextSeq() int {
	f.sequence++
	return f.sequence
}

func (f *Fixtures) insert(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	var id int64
	err := f.db.QueryRowxContext(context.Background(), query, args...).Scan(&id)
	require.NoError(t, err, "fixture insert failed: %s", query)
	return id
}

// Unit creates a unit of measure
func (f *Fixtures) Unit(t *testing.T, name, abbreviation string) int64 {
	t.Helper()
	return f.insert(t,
		`INSERT INTO units (unit_name, abbreviation) VALUES ($1, $2) RETURNING unit_id`,
		name, abbreviation)
}

// Category creates a category
func (f *Fixtures) Category(t *testing.T, name string) int64 {
	t.Helper()
	return f.insert(t,
		`INSERT INTO categories (category_name) VALUES ($1) RETURNING category_id`, name)
}

// Supplier creates a supplier with only a name
func (f *Fixtures) Supplier(t *testing.T, name string) int64 {
	t.Helper()
	return f.insert(t,
		`INSERT INTO suppliers (supplier_name) VALUES ($1) RETURNING supplier_id`, name)
}

// Item creates an inventory item. Its opening balance equals the given
// quantity on hand.
func (f *Fixtures) Item(t *testing.T, unitID int64, quantity, reorderPoint string, opts ...func(*ItemFixture)) int64 {
	t.Helper()

	item := ItemFixture{
		Name:           fmt.Sprintf("Test Item %d", f.nextSeq()),
		UnitID:         unitID,
		QuantityOnHand: quantity,
		ReorderPoint:   reorderPoint,
		ItemType:       "NonPerishable",
	}
	for _, opt := range opts {
		opt(&item)
	}

	id := f.insert(t, `
		INSERT INTO inventory_items
			(item_name, category_id, unit_id, quantity_on_hand, opening_quantity, reorder_point, item_type)
		VALUES ($1, $2, $3, $4, $4, $5, $6)
		RETURNING item_id`,
		item.Name, item.CategoryID, item.UnitID, Dec(item.QuantityOnHand), Dec(item.ReorderPoint), item.ItemType)

	var satellite string
	switch item.ItemType {
	case "Perishable":
		satellite = `INSERT INTO perishable_items (item_id) VALUES ($1)`
	case "Tool":
		satellite = `INSERT INTO tool_items (item_id) VALUES ($1)`
	default:
		satellite = `INSERT INTO non_perishable_items (item_id) VALUES ($1)`
	}
	_, err := f.db.ExecContext(context.Background(), satellite, id)
	require.NoError(t, err)

	return id
}

// WithItemName sets the item name
func WithItemName(name string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.Name = name
	}
}

// WithItemType sets the item type
func WithItemType(itemType string) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.ItemType = itemType
	}
}

// WithCategory puts the item in a category
func WithCategory(categoryID int64) func(*ItemFixture) {
	return func(i *ItemFixture) {
		i.CategoryID = &categoryID
	}
}

// MenuItem creates a menu item without a recipe
func (f *Fixtures) MenuItem(t *testing.T, name, price string) int64 {
	t.Helper()
	return f.insert(t,
		`INSERT INTO menu_items (menu_item_name, price) VALUES ($1, $2) RETURNING menu_item_id`,
		name, Dec(price))
}

// Ingredient adds a recipe line to a menu item
func (f *Fixtures) Ingredient(t *testing.T, menuItemID, itemID int64, quantity string, unitID int64) {
	t.Helper()
	_, err := f.db.ExecContext(context.Background(),
		`INSERT INTO recipe_ingredients (menu_item_id, item_id, quantity_required, unit_id) VALUES ($1, $2, $3, $4)`,
		menuItemID, itemID, Dec(quantity), unitID)
	require.NoError(t, err)
}

// Balance reads an item's stored quantity on hand
func (f *Fixtures) Balance(t *testing.T, itemID int64) decimal.Decimal {
	t.Helper()
	var qty decimal.Decimal
	err := f.db.GetContext(context.Background(), &qty,
		`SELECT quantity_on_hand FROM inventory_items WHERE item_id = $1`, itemID)
	require.NoError(t, err)
	return qty
}

// Count counts the rows of a table
func (f *Fixtures) Count(t *testing.T, table string) int {
	t.Helper()
	var n int
	err := f.db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table)
	require.NoError(t, err)
	return n
}
