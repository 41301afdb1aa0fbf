package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// StockBalance is an item's balance as left by a ledger statement
type StockBalance struct {
	ItemID         int64           `db:"item_id" json:"itemId"`
	ItemName       string          `db:"item_name" json:"name"`
	QuantityOnHand decimal.Decimal `db:"quantity_on_hand" json:"quantityOnHand"`
	ReorderPoint   decimal.Decimal `db:"reorder_point" json:"reorderPoint"`
	StockUnitID    int64           `db:"unit_id" json:"stockUnitId"`
}

// IsLow reports whether the balance is at or below a positive reorder point
func (b *StockBalance) IsLow() bool {
	return b.ReorderPoint.IsPositive() && b.QuantityOnHand.LessThanOrEqual(b.ReorderPoint)
}

// LedgerRepository is the only writer of stock balances. Every balance
// change it makes is paired with a ledger row in the same transaction.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithinTx runs fn in one transaction. An error from fn rolls back every
// statement issued through the LedgerTx.
func (r *LedgerRepository) WithinTx(ctx context.Context, fn func(*LedgerTx) error) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(&LedgerTx{tx: tx})
	})
}

// LedgerTx issues ledger statements inside an open transaction
type LedgerTx struct {
	tx *sqlx.Tx
}

// refError maps a write failure inside the ledger. A missing reference is
// reported with the id the caller supplied for it.
func refError(err error, ids map[string]int64) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
		resource := database.ReferenceResource(pqErr.Constraint)
		return errors.InvalidReference(resource, ids[resource])
	}
	return mapWriteError(err)
}

// InsertDelivery writes the delivery header
func (t *LedgerTx) InsertDelivery(ctx context.Context, d *Delivery) error {
	query := `
		INSERT INTO deliveries (supplier_id, delivery_date, invoice_number)
		VALUES ($1, $2, $3)
		RETURNING delivery_id, created_at
	`
	err := t.tx.QueryRowxContext(ctx, query, d.SupplierID, d.DeliveryDate, d.InvoiceNumber).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var supplierID int64
		if d.SupplierID != nil {
			supplierID = *d.SupplierID
		}
		return refError(err, map[string]int64{"supplier": supplierID})
	}
	return nil
}

// InsertDeliveryLine writes one line of a delivery. The stock increase is a
// separate IncreaseStock call.
func (t *LedgerTx) InsertDeliveryLine(ctx context.Context, l *DeliveryLine) error {
	query := `
		INSERT INTO delivery_lines (delivery_id, item_id, unit_id, quantity_received, unit_cost, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING delivery_line_id, created_at
	`
	err := t.tx.QueryRowxContext(ctx, query,
		l.DeliveryID, l.ItemID, l.UnitID, l.QuantityReceived, l.UnitCost, l.ExpirationDate,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return refError(err, map[string]int64{
			"inventory item": l.ItemID,
			"unit":           l.UnitID,
			"delivery":       l.DeliveryID,
		})
	}
	return nil
}

// IncreaseStock adds qty to the item's balance unconditionally
func (t *LedgerTx) IncreaseStock(ctx context.Context, itemID int64, qty decimal.Decimal) (*StockBalance, error) {
	query := `
		UPDATE inventory_items SET quantity_on_hand = quantity_on_hand + $2, updated_at = NOW()
		WHERE item_id = $1
		RETURNING item_id, item_name, quantity_on_hand, reorder_point, unit_id
	`
	var b StockBalance
	err := t.tx.GetContext(ctx, &b, query, itemID, qty)
	if err == sql.ErrNoRows {
		return nil, errors.InvalidReference("inventory item", itemID)
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &b, nil
}

// DecreaseStock subtracts qty from the item's balance only if enough stock
// is on hand. The predicate is evaluated after the row lock is taken, so
// concurrent deductions cannot overdraw the item.
func (t *LedgerTx) DecreaseStock(ctx context.Context, itemID int64, qty decimal.Decimal) (*StockBalance, error) {
	query := `
		UPDATE inventory_items SET quantity_on_hand = quantity_on_hand - $2, updated_at = NOW()
		WHERE item_id = $1 AND quantity_on_hand >= $2
		RETURNING item_id, item_name, quantity_on_hand, reorder_point, unit_id
	`
	var b StockBalance
	err := t.tx.GetContext(ctx, &b, query, itemID, qty)
	if err == nil {
		return &b, nil
	}
	if err != sql.ErrNoRows {
		return nil, mapWriteError(err)
	}

	var current struct {
		Name     string          `db:"item_name"`
		Quantity decimal.Decimal `db:"quantity_on_hand"`
	}
	err = t.tx.GetContext(ctx, &current,
		`SELECT item_name, quantity_on_hand FROM inventory_items WHERE item_id = $1`, itemID)
	if err == sql.ErrNoRows {
		return nil, errors.InvalidReference("inventory item", itemID)
	}
	if err != nil {
		return nil, err
	}
	return nil, errors.InsufficientStock(itemID, current.Name, qty.String(), current.Quantity.String())
}

// GetMenuItemName resolves a menu item for a sale
func (t *LedgerTx) GetMenuItemName(ctx context.Context, menuItemID int64) (string, error) {
	var name string
	err := t.tx.GetContext(ctx, &name,
		`SELECT menu_item_name FROM menu_items WHERE menu_item_id = $1`, menuItemID)
	if err == sql.ErrNoRows {
		return "", errors.InvalidReference("menu item", menuItemID)
	}
	return name, err
}

// RecipeFor returns the recipe of a menu item ordered by item id, which is
// the order sales lock item rows in.
func (t *LedgerTx) RecipeFor(ctx context.Context, menuItemID int64) ([]RecipeIngredient, error) {
	ingredients := []RecipeIngredient{}
	err := t.tx.SelectContext(ctx, &ingredients,
		ingredientSelect+` WHERE ri.menu_item_id = $1 ORDER BY ri.item_id`, menuItemID)
	return ingredients, err
}

// InsertUsage appends a usage row and fills in its generated and joined
// fields. A zero UsageDate means now.
func (t *LedgerTx) InsertUsage(ctx context.Context, u *UsageRecord) error {
	query := `
		WITH ins AS (
			INSERT INTO usage_records (item_id, quantity_used, unit_id, usage_date, usage_type, menu_item_id)
			VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6)
			RETURNING *
		)
		SELECT ins.usage_id, ins.item_id, i.item_name, ins.quantity_used, ins.unit_id, u.abbreviation,
			ins.usage_date, ins.usage_type, ins.menu_item_id, m.menu_item_name, ins.created_at
		FROM ins
		LEFT JOIN inventory_items i ON i.item_id = ins.item_id
		LEFT JOIN units u ON u.unit_id = ins.unit_id
		LEFT JOIN menu_items m ON m.menu_item_id = ins.menu_item_id
	`
	err := t.tx.GetContext(ctx, u, query,
		u.ItemID, u.QuantityUsed, u.UnitID, nullTime(u.UsageDate), u.UsageType, u.MenuItemID)
	if err != nil {
		return refError(err, map[string]int64{
			"inventory item": deref(u.ItemID),
			"unit":           deref(u.UnitID),
			"menu item":      deref(u.MenuItemID),
		})
	}
	return nil
}

// InsertWaste appends a waste row and fills in its generated and joined
// fields. A zero WasteDate means today.
func (t *LedgerTx) InsertWaste(ctx context.Context, w *WasteRecord) error {
	query := `
		WITH ins AS (
			INSERT INTO waste_records (item_id, quantity_wasted, unit_id, waste_date, reason)
			VALUES ($1, $2, $3, COALESCE($4, CURRENT_DATE), $5)
			RETURNING *
		)
		SELECT ins.waste_id, ins.item_id, i.item_name, ins.quantity_wasted, ins.unit_id, u.abbreviation,
			ins.waste_date, ins.reason, ins.created_at
		FROM ins
		JOIN inventory_items i ON i.item_id = ins.item_id
		JOIN units u ON u.unit_id = ins.unit_id
	`
	var wasteDate *Date
	if !w.WasteDate.IsZero() {
		wasteDate = &w.WasteDate
	}
	err := t.tx.GetContext(ctx, w, query, w.ItemID, w.QuantityWasted, w.UnitID, wasteDate, w.Reason)
	if err != nil {
		return refError(err, map[string]int64{
			"inventory item": w.ItemID,
			"unit":           w.UnitID,
		})
	}
	return nil
}

// GetDelivery reads back a delivery written in this transaction
func (t *LedgerTx) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	return getDelivery(ctx, t.tx, id)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
