package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
)

// UsageType distinguishes manual consumption from recipe-driven sales
type UsageType string

const (
	UsageTypeManual UsageType = "manual"
	UsageTypeSale   UsageType = "sale"
)

// UsageRecord is an append-only row of stock consumed. ItemID and UnitID
// are nil only for the sale of a menu item without a recipe.
type UsageRecord struct {
	ID           int64           `db:"usage_id" json:"usageId"`
	ItemID       *int64          `db:"item_id" json:"itemId"`
	ItemName     *string         `db:"item_name" json:"itemName,omitempty"`
	QuantityUsed decimal.Decimal `db:"quantity_used" json:"quantityUsed"`
	UnitID       *int64          `db:"unit_id" json:"unitId"`
	UnitAbbrev   *string         `db:"abbreviation" json:"unitAbbreviation,omitempty"`
	UsageDate    time.Time       `db:"usage_date" json:"usageDate"`
	UsageType    UsageType       `db:"usage_type" json:"usageType"`
	MenuItemID   *int64          `db:"menu_item_id" json:"menuItemId,omitempty"`
	MenuItemName *string         `db:"menu_item_name" json:"menuItemName,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// WasteRecord is an append-only row of stock discarded
type WasteRecord struct {
	ID             int64           `db:"waste_id" json:"wasteId"`
	ItemID         int64           `db:"item_id" json:"itemId"`
	ItemName       string          `db:"item_name" json:"itemName"`
	QuantityWasted decimal.Decimal `db:"quantity_wasted" json:"quantityWasted"`
	UnitID         int64           `db:"unit_id" json:"unitId"`
	UnitAbbrev     string          `db:"abbreviation" json:"unitAbbreviation"`
	WasteDate      Date            `db:"waste_date" json:"wasteDate"`
	Reason         *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

const usageSelect = `
	SELECT ur.usage_id, ur.item_id, i.item_name, ur.quantity_used, ur.unit_id, u.abbreviation,
		ur.usage_date, ur.usage_type, ur.menu_item_id, m.menu_item_name, ur.created_at
	FROM usage_records ur
	LEFT JOIN inventory_items i ON i.item_id = ur.item_id
	LEFT JOIN units u ON u.unit_id = ur.unit_id
	LEFT JOIN menu_items m ON m.menu_item_id = ur.menu_item_id
`

const wasteSelect = `
	SELECT w.waste_id, w.item_id, i.item_name, w.quantity_wasted, w.unit_id, u.abbreviation,
		w.waste_date, w.reason, w.created_at
	FROM waste_records w
	JOIN inventory_items i ON i.item_id = w.item_id
	JOIN units u ON u.unit_id = w.unit_id
`

// UsageFilter holds filter options for listing usage
type UsageFilter struct {
	Type       *UsageType
	ItemID     *int64
	MenuItemID *int64
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// UsageRepository reads the usage ledger
type UsageRepository struct {
	db *database.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *database.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// List retrieves usage records, newest first
func (r *UsageRepository) List(ctx context.Context, filter UsageFilter) ([]UsageRecord, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("ur.usage_type = $%d", len(args)))
	}
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("ur.item_id = $%d", len(args)))
	}
	if filter.MenuItemID != nil {
		args = append(args, *filter.MenuItemID)
		conditions = append(conditions, fmt.Sprintf("ur.menu_item_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("ur.usage_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("ur.usage_date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM usage_records ur`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, offset(filter.Page, filter.PerPage))
	query := usageSelect + where +
		fmt.Sprintf(" ORDER BY ur.usage_date DESC, ur.usage_id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	records := []UsageRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
