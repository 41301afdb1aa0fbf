package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// Supplier delivers inventory items
type Supplier struct {
	ID            int64     `db:"supplier_id" json:"supplierId"`
	Name          string    `db:"supplier_name" json:"name"`
	ContactPerson *string   `db:"contact_person" json:"contactPerson,omitempty"`
	PhoneNumber   *string   `db:"phone_number" json:"phoneNumber,omitempty"`
	Email         *string   `db:"email" json:"email,omitempty"`
	StreetAddress *string   `db:"street_address" json:"streetAddress,omitempty"`
	City          *string   `db:"city" json:"city,omitempty"`
	PostalCode    *string   `db:"postal_code" json:"postalCode,omitempty"`
	Country       *string   `db:"country" json:"country,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// SupplierItem links a supplier to an item it sells, with its price
type SupplierItem struct {
	SupplierID int64            `db:"supplier_id" json:"supplierId"`
	ItemID     int64            `db:"item_id" json:"itemId"`
	ItemName   string           `db:"item_name" json:"itemName"`
	Cost       *decimal.Decimal `db:"supplier_item_cost" json:"cost,omitempty"`
}

// SupplierRepository handles supplier persistence
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create creates a new supplier
func (r *SupplierRepository) Create(ctx context.Context, s *Supplier) error {
	query := `
		INSERT INTO suppliers (
			supplier_name, contact_person, phone_number, email,
			street_address, city, postal_code, country
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING supplier_id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		s.Name, s.ContactPerson, s.PhoneNumber, s.Email,
		s.StreetAddress, s.City, s.PostalCode, s.Country,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapWriteError(err)
}

// GetByID retrieves a supplier by ID
func (r *SupplierRepository) GetByID(ctx context.Context, id int64) (*Supplier, error) {
	var s Supplier
	err := r.db.GetContext(ctx, &s, `SELECT * FROM suppliers WHERE supplier_id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("supplier")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all suppliers ordered by name
func (r *SupplierRepository) List(ctx context.Context) ([]Supplier, error) {
	suppliers := []Supplier{}
	err := r.db.SelectContext(ctx, &suppliers, `SELECT * FROM suppliers ORDER BY supplier_name`)
	return suppliers, err
}

// Update updates a supplier
func (r *SupplierRepository) Update(ctx context.Context, s *Supplier) error {
	query := `
		UPDATE suppliers SET
			supplier_name = $2, contact_person = $3, phone_number = $4, email = $5,
			street_address = $6, city = $7, postal_code = $8, country = $9,
			updated_at = NOW()
		WHERE supplier_id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		s.ID, s.Name, s.ContactPerson, s.PhoneNumber, s.Email,
		s.StreetAddress, s.City, s.PostalCode, s.Country,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("supplier")
	}
	return mapWriteError(err)
}

// Delete removes a supplier. Deliveries keep it alive; item links cascade.
func (r *SupplierRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM suppliers WHERE supplier_id = $1`, id)
	if err != nil {
		return mapDeleteError(err, "supplier")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("supplier")
	}
	return nil
}

// ListItems returns the items a supplier sells
func (r *SupplierRepository) ListItems(ctx context.Context, supplierID int64) ([]SupplierItem, error) {
	query := `
		SELECT si.supplier_id, si.item_id, i.item_name, si.supplier_item_cost
		FROM supplier_items si
		JOIN inventory_items i ON i.item_id = si.item_id
		WHERE si.supplier_id = $1
		ORDER BY i.item_name
	`
	items := []SupplierItem{}
	err := r.db.SelectContext(ctx, &items, query, supplierID)
	return items, err
}

// AddItem links an item to a supplier
func (r *SupplierRepository) AddItem(ctx context.Context, si *SupplierItem) error {
	query := `
		WITH inserted AS (
			INSERT INTO supplier_items (supplier_id, item_id, supplier_item_cost)
			VALUES ($1, $2, $3)
			RETURNING item_id
		)
		SELECT i.item_name FROM inserted JOIN inventory_items i ON i.item_id = inserted.item_id
	`
	err := r.db.QueryRowxContext(ctx, query, si.SupplierID, si.ItemID, si.Cost).Scan(&si.ItemName)
	return mapWriteError(err)
}

// UpdateItemCost changes the price of a supplier item link
func (r *SupplierRepository) UpdateItemCost(ctx context.Context, si *SupplierItem) error {
	query := `
		UPDATE supplier_items si SET supplier_item_cost = $3
		FROM inventory_items i
		WHERE si.supplier_id = $1 AND si.item_id = $2 AND i.item_id = si.item_id
		RETURNING i.item_name
	`
	err := r.db.QueryRowxContext(ctx, query, si.SupplierID, si.ItemID, si.Cost).Scan(&si.ItemName)
	if err == sql.ErrNoRows {
		return errors.NotFound("supplier item")
	}
	return mapWriteError(err)
}

// RemoveItem unlinks an item from a supplier
func (r *SupplierRepository) RemoveItem(ctx context.Context, supplierID, itemID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM supplier_items WHERE supplier_id = $1 AND item_id = $2`, supplierID, itemID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("supplier item")
	}
	return nil
}
