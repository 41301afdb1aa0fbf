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

// Delivery is the header of goods received from a supplier. Deliveries are
// immutable once recorded.
type Delivery struct {
	ID            int64          `db:"delivery_id" json:"deliveryId"`
	SupplierID    *int64         `db:"supplier_id" json:"supplierId,omitempty"`
	SupplierName  *string        `db:"supplier_name" json:"supplierName,omitempty"`
	DeliveryDate  Date           `db:"delivery_date" json:"deliveryDate"`
	InvoiceNumber *string        `db:"invoice_number" json:"invoiceNumber,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	Lines         []DeliveryLine `db:"-" json:"items"`
}

// DeliveryLine is one item received in a delivery
type DeliveryLine struct {
	ID               int64            `db:"delivery_line_id" json:"deliveryLineId"`
	DeliveryID       int64            `db:"delivery_id" json:"deliveryId"`
	ItemID           int64            `db:"item_id" json:"itemId"`
	ItemName         string           `db:"item_name" json:"itemName"`
	UnitID           int64            `db:"unit_id" json:"unitId"`
	UnitAbbrev       string           `db:"abbreviation" json:"unitAbbreviation"`
	QuantityReceived decimal.Decimal  `db:"quantity_received" json:"quantityReceived"`
	UnitCost         *decimal.Decimal `db:"unit_cost" json:"costPerUnit,omitempty"`
	ExpirationDate   *Date            `db:"expiration_date" json:"expirationDate,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
}

// DeliveryFilter holds filter options for listing deliveries
type DeliveryFilter struct {
	SupplierID *int64
	From       *Date
	To         *Date
	Page       int
	PerPage    int
}

const deliverySelect = `
	SELECT d.delivery_id, d.supplier_id, s.supplier_name, d.delivery_date, d.invoice_number, d.created_at
	FROM deliveries d
	LEFT JOIN suppliers s ON s.supplier_id = d.supplier_id
`

const deliveryLineSelect = `
	SELECT dl.delivery_line_id, dl.delivery_id, dl.item_id, i.item_name, dl.unit_id, u.abbreviation,
		dl.quantity_received, dl.unit_cost, dl.expiration_date, dl.created_at
	FROM delivery_lines dl
	JOIN inventory_items i ON i.item_id = dl.item_id
	JOIN units u ON u.unit_id = dl.unit_id
`

// DeliveryRepository reads recorded deliveries. Deliveries are written
// through LedgerTx only.
type DeliveryRepository struct {
	db *database.DB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *database.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// GetByID retrieves a delivery with its lines
func (r *DeliveryRepository) GetByID(ctx context.Context, id int64) (*Delivery, error) {
	d, err := getDelivery(ctx, r.db, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("delivery")
	}
	return d, err
}

// List retrieves deliveries, newest first, with their lines
func (r *DeliveryRepository) List(ctx context.Context, filter DeliveryFilter) ([]Delivery, int64, error) {
	var conditions []string
	var args []interface{}

	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		conditions = append(conditions, fmt.Sprintf("d.supplier_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("d.delivery_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("d.delivery_date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM deliveries d`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.PerPage, offset(filter.Page, filter.PerPage))
	query := deliverySelect + where +
		fmt.Sprintf(" ORDER BY d.delivery_date DESC, d.delivery_id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	deliveries := []Delivery{}
	if err := r.db.SelectContext(ctx, &deliveries, query, args...); err != nil {
		return nil, 0, err
	}
	if len(deliveries) == 0 {
		return deliveries, total, nil
	}

	ids := make([]int64, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.ID
	}
	lineQuery, lineArgs, err := sqlx.In(deliveryLineSelect+` WHERE dl.delivery_id IN (?) ORDER BY dl.delivery_line_id`, ids)
	if err != nil {
		return nil, 0, err
	}

	var lines []DeliveryLine
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(lineQuery), lineArgs...); err != nil {
		return nil, 0, err
	}

	byDelivery := make(map[int64][]DeliveryLine, len(deliveries))
	for _, l := range lines {
		byDelivery[l.DeliveryID] = append(byDelivery[l.DeliveryID], l)
	}
	for i := range deliveries {
		deliveries[i].Lines = byDelivery[deliveries[i].ID]
	}
	return deliveries, total, nil
}

// getDelivery loads a delivery and its lines through q, which may be the
// pool or an open transaction. It returns sql.ErrNoRows when absent.
func getDelivery(ctx context.Context, q sqlx.QueryerContext, id int64) (*Delivery, error) {
	var d Delivery
	if err := sqlx.GetContext(ctx, q, &d, deliverySelect+` WHERE d.delivery_id = $1`, id); err != nil {
		return nil, err
	}

	d.Lines = []DeliveryLine{}
	if err := sqlx.SelectContext(ctx, q, &d.Lines,
		deliveryLineSelect+` WHERE dl.delivery_id = $1 ORDER BY dl.delivery_line_id`, id); err != nil {
		return nil, err
	}
	return &d, nil
}
