package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// ItemType discriminates the item's satellite attributes
type ItemType string

const (
	ItemTypePerishable    ItemType = "Perishable"
	ItemTypeNonPerishable ItemType = "NonPerishable"
	ItemTypeTool          ItemType = "Tool"
)

// Valid reports whether t is a known item type
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypePerishable, ItemTypeNonPerishable, ItemTypeTool:
		return true
	}
	return false
}

// PerishableAttributes apply to food that spoils
type PerishableAttributes struct {
	ExpirationDate     *Date   `db:"expiration_date" json:"expirationDate,omitempty"`
	StorageTemperature *string `db:"storage_temperature" json:"storageTemperature,omitempty"`
}

// NonPerishableAttributes apply to shelf-stable goods and equipment
type NonPerishableAttributes struct {
	WarrantyPeriod *string `db:"warranty_period" json:"warrantyPeriod,omitempty"`
}

// ToolAttributes apply to kitchen tools
type ToolAttributes struct {
	MaintenanceSchedule *string `db:"maintenance_schedule" json:"maintenanceSchedule,omitempty"`
}

// InventoryItem is a stocked item. QuantityOnHand is the running balance of
// the ledger; only LedgerTx changes it after creation. Exactly one of the
// attribute pointers is set, the one matching ItemType.
type InventoryItem struct {
	ID              int64           `db:"item_id" json:"itemId"`
	Name            string          `db:"item_name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	CategoryID      *int64          `db:"category_id" json:"categoryId,omitempty"`
	CategoryName    *string         `db:"category_name" json:"categoryName,omitempty"`
	UnitID          int64           `db:"unit_id" json:"unitId"`
	UnitName        string          `db:"unit_name" json:"unitName"`
	UnitAbbrev      string          `db:"abbreviation" json:"unitAbbreviation"`
	QuantityOnHand  decimal.Decimal `db:"quantity_on_hand" json:"quantityOnHand"`
	OpeningQuantity decimal.Decimal `db:"opening_quantity" json:"openingQuantity"`
	ReorderPoint    decimal.Decimal `db:"reorder_point" json:"reorderPoint"`
	ItemType        ItemType        `db:"item_type" json:"itemType"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`

	Perishable    *PerishableAttributes    `db:"-" json:"perishable,omitempty"`
	NonPerishable *NonPerishableAttributes `db:"-" json:"nonPerishable,omitempty"`
	Tool          *ToolAttributes          `db:"-" json:"tool,omitempty"`
}

// itemRow is the flat join of an item with all three satellite tables
type itemRow struct {
	InventoryItem
	ExpirationDate      *Date   `db:"expiration_date"`
	StorageTemperature  *string `db:"storage_temperature"`
	WarrantyPeriod      *string `db:"warranty_period"`
	MaintenanceSchedule *string `db:"maintenance_schedule"`
}

// item folds the satellite columns into the branch matching the item type
func (r *itemRow) item() *InventoryItem {
	item := r.InventoryItem
	switch item.ItemType {
	case ItemTypePerishable:
		item.Perishable = &PerishableAttributes{ExpirationDate: r.ExpirationDate, StorageTemperature: r.StorageTemperature}
	case ItemTypeNonPerishable:
		item.NonPerishable = &NonPerishableAttributes{WarrantyPeriod: r.WarrantyPeriod}
	case ItemTypeTool:
		item.Tool = &ToolAttributes{MaintenanceSchedule: r.MaintenanceSchedule}
	}
	return &item
}

const itemSelect = `
	SELECT i.item_id, i.item_name, i.description, i.category_id, c.category_name,
		i.unit_id, u.unit_name, u.abbreviation,
		i.quantity_on_hand, i.opening_quantity, i.reorder_point, i.item_type,
		i.created_at, i.updated_at,
		p.expiration_date, p.storage_temperature,
		np.warranty_period,
		t.maintenance_schedule
	FROM inventory_items i
	JOIN units u ON u.unit_id = i.unit_id
	LEFT JOIN categories c ON c.category_id = i.category_id
	LEFT JOIN perishable_items p ON p.item_id = i.item_id
	LEFT JOIN non_perishable_items np ON np.item_id = i.item_id
	LEFT JOIN tool_items t ON t.item_id = i.item_id
`

// ItemFilter holds filter options for listing items
type ItemFilter struct {
	CategoryID *int64
	ItemType   *ItemType
	Search     *string
	Page       int
	PerPage    int
}

// ItemRepository handles inventory item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts the item and its satellite row in one transaction. The
// initial quantity is also recorded as the opening balance.
func (r *ItemRepository) Create(ctx context.Context, item *InventoryItem) error {
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO inventory_items (
				item_name, description, category_id, unit_id,
				quantity_on_hand, opening_quantity, reorder_point, item_type
			) VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
			RETURNING item_id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			item.Name, item.Description, item.CategoryID, item.UnitID,
			item.QuantityOnHand, item.ReorderPoint, item.ItemType,
		).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return err
		}
		item.OpeningQuantity = item.QuantityOnHand

		return insertAttributes(ctx, tx, item)
	})
	if err != nil {
		return mapWriteError(err)
	}

	created, err := r.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	*item = *created
	return nil
}

func insertAttributes(ctx context.Context, tx *sqlx.Tx, item *InventoryItem) error {
	var err error
	switch item.ItemType {
	case ItemTypePerishable:
		attrs := item.Perishable
		if attrs == nil {
			attrs = &PerishableAttributes{}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO perishable_items (item_id, expiration_date, storage_temperature) VALUES ($1, $2, $3)`,
			item.ID, attrs.ExpirationDate, attrs.StorageTemperature)
	case ItemTypeNonPerishable:
		attrs := item.NonPerishable
		if attrs == nil {
			attrs = &NonPerishableAttributes{}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO non_perishable_items (item_id, warranty_period) VALUES ($1, $2)`,
			item.ID, attrs.WarrantyPeriod)
	case ItemTypeTool:
		attrs := item.Tool
		if attrs == nil {
			attrs = &ToolAttributes{}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tool_items (item_id, maintenance_schedule) VALUES ($1, $2)`,
			item.ID, attrs.MaintenanceSchedule)
	default:
		err = fmt.Errorf("unknown item type %q", item.ItemType)
	}
	return err
}

// GetByID retrieves an item with its unit, category and type attributes
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*InventoryItem, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, itemSelect+` WHERE i.item_id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("inventory item")
	}
	if err != nil {
		return nil, err
	}
	return row.item(), nil
}

// List retrieves items with filtering and pagination
func (r *ItemRepository) List(ctx context.Context, filter ItemFilter) ([]InventoryItem, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("i.category_id = $%d", len(args)))
	}
	if filter.ItemType != nil {
		args = append(args, *filter.ItemType)
		conditions = append(conditions, fmt.Sprintf("i.item_type = $%d", len(args)))
	}
	if filter.Search != nil && *filter.Search != "" {
		args = append(args, "%"+*filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("i.item_name ILIKE $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventory_items i`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, offset(filter.Page, filter.PerPage))
	query := itemSelect + where + fmt.Sprintf(" ORDER BY i.item_name LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	items := make([]InventoryItem, 0, len(rows))
	for i := range rows {
		items = append(items, *rows[i].item())
	}
	return items, total, nil
}

// Update changes the master fields and the attributes of the item's own
// type. The balance, opening quantity and type are left untouched.
func (r *ItemRepository) Update(ctx context.Context, item *InventoryItem) error {
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE inventory_items SET
				item_name = $2, description = $3, category_id = $4, unit_id = $5,
				reorder_point = $6, updated_at = NOW()
			WHERE item_id = $1
			RETURNING item_type
		`
		var itemType ItemType
		err := tx.QueryRowxContext(ctx, query,
			item.ID, item.Name, item.Description, item.CategoryID, item.UnitID, item.ReorderPoint,
		).Scan(&itemType)
		if err == sql.ErrNoRows {
			return errors.NotFound("inventory item")
		}
		if err != nil {
			return err
		}

		switch {
		case itemType == ItemTypePerishable && item.Perishable != nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE perishable_items SET expiration_date = $2, storage_temperature = $3 WHERE item_id = $1`,
				item.ID, item.Perishable.ExpirationDate, item.Perishable.StorageTemperature)
		case itemType == ItemTypeNonPerishable && item.NonPerishable != nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE non_perishable_items SET warranty_period = $2 WHERE item_id = $1`,
				item.ID, item.NonPerishable.WarrantyPeriod)
		case itemType == ItemTypeTool && item.Tool != nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE tool_items SET maintenance_schedule = $2 WHERE item_id = $1`,
				item.ID, item.Tool.MaintenanceSchedule)
		}
		return err
	})
	if err != nil {
		return mapWriteError(err)
	}

	updated, err := r.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	*item = *updated
	return nil
}

// Delete removes an item that has no ledger history or recipe usage
func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE item_id = $1`, id)
	if err != nil {
		return mapDeleteError(err, "inventory item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("inventory item")
	}
	return nil
}
