package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
)

// LowStockItem is an item at or below its reorder point
type LowStockItem struct {
	ItemID         int64           `db:"item_id" json:"itemId"`
	ItemName       string          `db:"item_name" json:"name"`
	CategoryName   *string         `db:"category_name" json:"categoryName,omitempty"`
	QuantityOnHand decimal.Decimal `db:"quantity_on_hand" json:"quantityOnHand"`
	ReorderPoint   decimal.Decimal `db:"reorder_point" json:"reorderPoint"`
	UnitAbbrev     string          `db:"abbreviation" json:"unitAbbreviation"`
}

// ExpiringLine is a delivery line with an expiration date in the window
type ExpiringLine struct {
	DeliveryLineID   int64           `db:"delivery_line_id" json:"deliveryLineId"`
	DeliveryID       int64           `db:"delivery_id" json:"deliveryId"`
	DeliveryDate     Date            `db:"delivery_date" json:"deliveryDate"`
	ItemID           int64           `db:"item_id" json:"itemId"`
	ItemName         string          `db:"item_name" json:"itemName"`
	QuantityReceived decimal.Decimal `db:"quantity_received" json:"quantityReceived"`
	UnitAbbrev       string          `db:"abbreviation" json:"unitAbbreviation"`
	ExpirationDate   Date            `db:"expiration_date" json:"expirationDate"`
	SupplierName     *string         `db:"supplier_name" json:"supplierName,omitempty"`
}

// WasteFilter holds filter options for the waste report
type WasteFilter struct {
	ItemID *int64
	From   *Date
	To     *Date
}

// DashboardCounts summarises the current inventory state
type DashboardCounts struct {
	TotalItems       int64 `db:"total_items" json:"totalItems"`
	LowStockItems    int64 `db:"low_stock_items" json:"lowStockItems"`
	OutOfStockItems  int64 `db:"out_of_stock_items" json:"outOfStockItems"`
	ExpiringLines    int64 `db:"expiring_lines" json:"expiringLines"`
	DeliveriesToday  int64 `db:"deliveries_today" json:"deliveriesToday"`
	SaleEntriesToday int64 `db:"sale_entries_today" json:"saleEntriesToday"`
	WasteEntriesWeek int64 `db:"waste_entries_week" json:"wasteEntriesWeek"`
	OpenAlerts       int64 `db:"open_alerts" json:"openAlerts"`
}

// ItemTotals are the ledger sums for one item
type ItemTotals struct {
	ItemID          int64           `db:"item_id" json:"itemId"`
	ItemName        string          `db:"item_name" json:"name"`
	QuantityOnHand  decimal.Decimal `db:"quantity_on_hand" json:"quantityOnHand"`
	OpeningQuantity decimal.Decimal `db:"opening_quantity" json:"openingQuantity"`
	Delivered       decimal.Decimal `db:"delivered" json:"delivered"`
	Used            decimal.Decimal `db:"used" json:"used"`
	Wasted          decimal.Decimal `db:"wasted" json:"wasted"`
}

// MovementKind identifies the ledger table a movement came from
type MovementKind string

const (
	MovementDelivery MovementKind = "delivery"
	MovementUsage    MovementKind = "usage"
	MovementWaste    MovementKind = "waste"
)

// Movement is one ledger row for an item. Quantity is signed: positive for
// deliveries, negative for usage and waste.
type Movement struct {
	Kind      MovementKind    `db:"kind" json:"kind"`
	RefID     int64           `db:"ref_id" json:"refId"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// ReportRepository runs the read-only projections over the ledger
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// LowStock returns items with a positive reorder point that they have
// reached, ordered by name
func (r *ReportRepository) LowStock(ctx context.Context) ([]LowStockItem, error) {
	query := `
		SELECT i.item_id, i.item_name, c.category_name, i.quantity_on_hand, i.reorder_point, u.abbreviation
		FROM inventory_items i
		JOIN units u ON u.unit_id = i.unit_id
		LEFT JOIN categories c ON c.category_id = i.category_id
		WHERE i.reorder_point > 0 AND i.quantity_on_hand <= i.reorder_point
		ORDER BY i.item_name, i.item_id
	`
	items := []LowStockItem{}
	err := r.db.SelectContext(ctx, &items, query)
	return items, err
}

// Expirations returns delivery lines expiring on or before asOf + days.
// Lines already past asOf are left out unless includePastDue is set.
func (r *ReportRepository) Expirations(ctx context.Context, asOf Date, days int, includePastDue bool) ([]ExpiringLine, error) {
	query := `
		SELECT dl.delivery_line_id, dl.delivery_id, d.delivery_date, dl.item_id, i.item_name,
			dl.quantity_received, u.abbreviation, dl.expiration_date, s.supplier_name
		FROM delivery_lines dl
		JOIN deliveries d ON d.delivery_id = dl.delivery_id
		JOIN inventory_items i ON i.item_id = dl.item_id
		JOIN units u ON u.unit_id = dl.unit_id
		LEFT JOIN suppliers s ON s.supplier_id = d.supplier_id
		WHERE dl.expiration_date IS NOT NULL
			AND dl.expiration_date <= $1::date + $2::int
			AND ($3 OR dl.expiration_date >= $1::date)
		ORDER BY dl.expiration_date, i.item_name, dl.delivery_line_id
	`
	lines := []ExpiringLine{}
	err := r.db.SelectContext(ctx, &lines, query, asOf, days, includePastDue)
	return lines, err
}

// Waste returns waste records, newest first
func (r *ReportRepository) Waste(ctx context.Context, filter WasteFilter) ([]WasteRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		conditions = append(conditions, fmt.Sprintf("w.item_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("w.waste_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("w.waste_date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	records := []WasteRecord{}
	err := r.db.SelectContext(ctx, &records,
		wasteSelect+where+` ORDER BY w.waste_date DESC, w.waste_id DESC`, args...)
	return records, err
}

// Dashboard counts the headline figures as of the given day
func (r *ReportRepository) Dashboard(ctx context.Context, asOf Date, expiryWindowDays int) (*DashboardCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM inventory_items) AS total_items,
			(SELECT COUNT(*) FROM inventory_items
				WHERE reorder_point > 0 AND quantity_on_hand <= reorder_point) AS low_stock_items,
			(SELECT COUNT(*) FROM inventory_items WHERE quantity_on_hand = 0) AS out_of_stock_items,
			(SELECT COUNT(*) FROM delivery_lines
				WHERE expiration_date BETWEEN $1::date AND $1::date + $2::int) AS expiring_lines,
			(SELECT COUNT(*) FROM deliveries WHERE delivery_date = $1::date) AS deliveries_today,
			(SELECT COUNT(*) FROM usage_records
				WHERE usage_type = 'sale' AND usage_date >= $1::date AND usage_date < $1::date + 1) AS sale_entries_today,
			(SELECT COUNT(*) FROM waste_records
				WHERE waste_date > $1::date - 7 AND waste_date <= $1::date) AS waste_entries_week,
			(SELECT COUNT(*) FROM inventory_alerts WHERE NOT is_acknowledged) AS open_alerts
	`
	var counts DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, asOf, expiryWindowDays); err != nil {
		return nil, err
	}
	return &counts, nil
}

// ReconciliationTotals sums the ledger per item. A nil itemID covers every
// item.
func (r *ReportRepository) ReconciliationTotals(ctx context.Context, itemID *int64) ([]ItemTotals, error) {
	query := `
		SELECT i.item_id, i.item_name, i.quantity_on_hand, i.opening_quantity,
			COALESCE(d.total, 0) AS delivered,
			COALESCE(u.total, 0) AS used,
			COALESCE(w.total, 0) AS wasted
		FROM inventory_items i
		LEFT JOIN (
			SELECT item_id, SUM(quantity_received) AS total FROM delivery_lines GROUP BY item_id
		) d ON d.item_id = i.item_id
		LEFT JOIN (
			SELECT item_id, SUM(quantity_used) AS total FROM usage_records
			WHERE item_id IS NOT NULL GROUP BY item_id
		) u ON u.item_id = i.item_id
		LEFT JOIN (
			SELECT item_id, SUM(quantity_wasted) AS total FROM waste_records GROUP BY item_id
		) w ON w.item_id = i.item_id
		WHERE $1::bigint IS NULL OR i.item_id = $1
		ORDER BY i.item_id
	`
	totals := []ItemTotals{}
	err := r.db.SelectContext(ctx, &totals, query, itemID)
	return totals, err
}

// ItemMovements returns every ledger row for an item in the order it was
// written
func (r *ReportRepository) ItemMovements(ctx context.Context, itemID int64) ([]Movement, error) {
	query := `
		SELECT kind, ref_id, quantity, created_at FROM (
			SELECT 'delivery' AS kind, delivery_line_id AS ref_id, quantity_received AS quantity, created_at
			FROM delivery_lines WHERE item_id = $1
			UNION ALL
			SELECT 'usage', usage_id, -quantity_used, created_at
			FROM usage_records WHERE item_id = $1
			UNION ALL
			SELECT 'waste', waste_id, -quantity_wasted, created_at
			FROM waste_records WHERE item_id = $1
		) m
		ORDER BY created_at, kind, ref_id
	`
	movements := []Movement{}
	err := r.db.SelectContext(ctx, &movements, query, itemID)
	return movements, err
}
